package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// LeaveRepository stores health-assistant leave.
type LeaveRepository interface {
	Create(ctx context.Context, leave *domain.Leave) error
	// Active returns the user's earliest uncancelled leave that has not ended
	// before day.
	Active(ctx context.Context, userID string, day time.Time) (*domain.Leave, error)
	Cancel(ctx context.Context, id string) error
}

type leaveRepository struct {
	pool *pgxpool.Pool
}

// NewLeaveRepository returns a Postgres-backed implementation.
func NewLeaveRepository(pool *pgxpool.Pool) LeaveRepository {
	return &leaveRepository{pool: pool}
}

func (r *leaveRepository) Create(ctx context.Context, leave *domain.Leave) error {
	const query = `
        INSERT INTO leaves (user_id, start_date, end_date, reason)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		leave.UserID,
		domain.Day(leave.StartDate),
		domain.Day(leave.EndDate),
		leave.Reason,
	).Scan(&leave.ID, &leave.CreatedAt)
}

func (r *leaveRepository) Active(ctx context.Context, userID string, day time.Time) (*domain.Leave, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, user_id, start_date, end_date, reason, created_at
        FROM leaves
        WHERE user_id=$1 AND cancelled_at IS NULL AND end_date >= $2
        ORDER BY start_date LIMIT 1`

	var l domain.Leave
	err := r.pool.QueryRow(ctx, query, userID, domain.Day(day)).
		Scan(&l.ID, &l.UserID, &l.StartDate, &l.EndDate, &l.Reason, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leaveRepository) Cancel(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE leaves SET cancelled_at=NOW() WHERE id=$1 AND cancelled_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type memoryLeaveRepository struct {
	mu     sync.RWMutex
	leaves map[string]domain.Leave
	now    func() time.Time
}

// NewMemoryLeaveRepository returns a process-local implementation.
func NewMemoryLeaveRepository() LeaveRepository {
	return &memoryLeaveRepository{leaves: make(map[string]domain.Leave), now: time.Now}
}

func (r *memoryLeaveRepository) Create(_ context.Context, leave *domain.Leave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	leave.ID = uuid.NewString()
	leave.StartDate = domain.Day(leave.StartDate)
	leave.EndDate = domain.Day(leave.EndDate)
	leave.CreatedAt = r.now().UTC()
	r.leaves[leave.ID] = *leave
	return nil
}

func (r *memoryLeaveRepository) Active(_ context.Context, userID string, day time.Time) (*domain.Leave, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	day = domain.Day(day)
	var found *domain.Leave
	for _, l := range r.leaves {
		if l.UserID != userID || l.EndDate.Before(day) {
			continue
		}
		if found == nil || l.StartDate.Before(found.StartDate) {
			found = &l
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Cancel forgets the leave; cancelled leave is never read back.
func (r *memoryLeaveRepository) Cancel(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leaves[id]; !ok {
		return ErrNotFound
	}
	delete(r.leaves, id)
	return nil
}
