package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// FeedRepository stores health announcements, newest first.
type FeedRepository interface {
	Create(ctx context.Context, feed *domain.Feed) error
	List(ctx context.Context) ([]domain.Feed, error)
}

type feedRepository struct {
	pool *pgxpool.Pool
}

// NewFeedRepository returns a Postgres-backed implementation.
func NewFeedRepository(pool *pgxpool.Pool) FeedRepository {
	return &feedRepository{pool: pool}
}

func (r *feedRepository) Create(ctx context.Context, feed *domain.Feed) error {
	const query = `
        INSERT INTO feeds (user_id, title, description, image_urls, video_urls)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		feed.AuthorID,
		feed.Title,
		feed.Description,
		nonNil(feed.ImageURLs),
		nonNil(feed.VideoURLs),
	).Scan(&feed.ID, &feed.CreatedAt, &feed.UpdatedAt)
}

func (r *feedRepository) List(ctx context.Context) ([]domain.Feed, error) {
	const query = `
        SELECT id, user_id, title, description, image_urls, video_urls, created_at, updated_at
        FROM feeds ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Feed, error) {
		var f domain.Feed
		err := row.Scan(&f.ID, &f.AuthorID, &f.Title, &f.Description, &f.ImageURLs, &f.VideoURLs, &f.CreatedAt, &f.UpdatedAt)
		return f, err
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type memoryFeedRepository struct {
	mu    sync.RWMutex
	feeds []domain.Feed
	now   func() time.Time
}

// NewMemoryFeedRepository returns a process-local implementation.
func NewMemoryFeedRepository() FeedRepository {
	return &memoryFeedRepository{now: time.Now}
}

func (r *memoryFeedRepository) Create(_ context.Context, feed *domain.Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	feed.ID = uuid.NewString()
	feed.ImageURLs = nonNil(feed.ImageURLs)
	feed.VideoURLs = nonNil(feed.VideoURLs)
	feed.CreatedAt, feed.UpdatedAt = now, now
	r.feeds = append(r.feeds, *feed)
	return nil
}

func (r *memoryFeedRepository) List(context.Context) ([]domain.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Feed, len(r.feeds))
	copy(out, r.feeds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
