package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// ProgrammeRepository stores academic programmes, ordered by name.
type ProgrammeRepository interface {
	Create(ctx context.Context, programme *domain.Programme) error
	Get(ctx context.Context, id string) (*domain.Programme, error)
	List(ctx context.Context) ([]domain.Programme, error)
}

type programmeRepository struct {
	pool *pgxpool.Pool
}

// NewProgrammeRepository returns a Postgres-backed implementation.
func NewProgrammeRepository(pool *pgxpool.Pool) ProgrammeRepository {
	return &programmeRepository{pool: pool}
}

func (r *programmeRepository) Create(ctx context.Context, programme *domain.Programme) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO programmes (name) VALUES ($1) RETURNING id`,
		strings.TrimSpace(programme.Name),
	).Scan(&programme.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

func (r *programmeRepository) Get(ctx context.Context, id string) (*domain.Programme, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var p domain.Programme
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM programmes WHERE id=$1`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *programmeRepository) List(ctx context.Context) ([]domain.Programme, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM programmes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Programme, error) {
		var p domain.Programme
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
}

type memoryProgrammeRepository struct {
	mu         sync.RWMutex
	programmes map[string]domain.Programme
}

// NewMemoryProgrammeRepository returns a process-local implementation.
func NewMemoryProgrammeRepository() ProgrammeRepository {
	return &memoryProgrammeRepository{programmes: make(map[string]domain.Programme)}
}

func (r *memoryProgrammeRepository) Create(_ context.Context, programme *domain.Programme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.TrimSpace(programme.Name)
	for _, p := range r.programmes {
		if p.Name == name {
			return ErrConflict
		}
	}
	programme.ID = uuid.NewString()
	programme.Name = name
	r.programmes[programme.ID] = *programme
	return nil
}

func (r *memoryProgrammeRepository) Get(_ context.Context, id string) (*domain.Programme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programmes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryProgrammeRepository) List(context.Context) ([]domain.Programme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Programme, 0, len(r.programmes))
	for _, p := range r.programmes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
