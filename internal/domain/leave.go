package domain

import "time"

// DateLayout is the calendar-day format leave dates travel in on the CLI.
const DateLayout = "2006-01-02"

// Leave is a health assistant's planned absence. Both dates are whole days
// and inclusive.
type Leave struct {
	ID        string    `json:"id"`
	UserID    string    `json:"ha_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Covers reports whether t falls on a day of the leave.
func (l Leave) Covers(t time.Time) bool {
	day := Day(t)
	return !day.Before(l.StartDate) && !day.After(l.EndDate)
}

// LeaveRequest is the body of POST /ha/set-leave.
type LeaveRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
