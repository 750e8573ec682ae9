package domain

import "time"

// Feed is a health announcement posted by a health assistant.
type Feed struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURLs   []string  `json:"image_urls"`
	VideoURLs   []string  `json:"video_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
