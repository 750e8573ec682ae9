package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

const (
	sessionPrefix     = "session:"
	userSessionPrefix = "session_user:"
	refreshPrefix     = "refresh:"
)

type redisSessionRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionRepository stores sessions in Redis. Every key expires with
// the session it belongs to.
func NewRedisSessionRepository(client *redis.Client, prefix string) SessionRepository {
	if prefix != "" {
		prefix += ":"
	}
	return &redisSessionRepository{client: client, prefix: prefix}
}

func (r *redisSessionRepository) sessionKey(id string) string {
	return r.prefix + sessionPrefix + id
}

func (r *redisSessionRepository) userKey(userID string) string {
	return r.prefix + userSessionPrefix + userID
}

func (r *redisSessionRepository) refreshKey(token string) string {
	return r.prefix + refreshPrefix + token
}

func ttlUntil(t time.Time) time.Duration {
	ttl := time.Until(t)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func (r *redisSessionRepository) Create(ctx context.Context, session *domain.Session, refreshToken string) error {
	sb, err := json.Marshal(session)
	if err != nil {
		return err
	}
	rb, err := json.Marshal(refreshRecord{SessionID: session.ID, UserID: session.UserID, ExpiresAt: session.ExpiresAt})
	if err != nil {
		return err
	}
	ttl := ttlUntil(session.ExpiresAt)

	ok, err := r.client.SetNX(ctx, r.refreshKey(refreshToken), rb, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), sb, ttl)
		pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
		return nil
	})
	return err
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	return r.get(ctx, r.client, id)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *redisSessionRepository) get(ctx context.Context, c stringGetter, id string) (*domain.Session, error) {
	raw, err := c.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisSessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired; drop the stale index entry
			_ = r.client.SRem(ctx, r.userKey(userID), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	sortSessions(out)
	return out, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		pipe.SRem(ctx, r.userKey(s.UserID), id)
		return nil
	})
	return err
}

func (r *redisSessionRepository) DeleteByUser(ctx context.Context, userID, keepID string) (int, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if id == keepID {
			continue
		}
		removed, err := r.client.Del(ctx, r.sessionKey(id)).Result()
		if err != nil {
			return n, err
		}
		_ = r.client.SRem(ctx, r.userKey(userID), id).Err()
		n += int(removed)
	}
	return n, nil
}

func (r *redisSessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*domain.Session, error) {
	oldKey := r.refreshKey(oldToken)
	var (
		rotated  *domain.Session
		replayed string
	)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, oldKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec refreshRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if rec.Revoked {
			replayed = rec.SessionID
			return ErrTokenReplay
		}
		s, err := r.get(ctx, tx, rec.SessionID)
		if err != nil {
			return err
		}

		s.ExpiresAt = expiresAt
		sb, err := json.Marshal(s)
		if err != nil {
			return err
		}
		rec.Revoked = true
		revoked, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		next, err := json.Marshal(refreshRecord{SessionID: s.ID, UserID: s.UserID, ExpiresAt: expiresAt})
		if err != nil {
			return err
		}

		ttl := ttlUntil(expiresAt)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, oldKey, revoked, redis.KeepTTL)
			pipe.Set(ctx, r.refreshKey(newToken), next, ttl)
			pipe.Set(ctx, r.sessionKey(s.ID), sb, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		rotated = s
		return nil
	}, oldKey)

	switch {
	case errors.Is(err, ErrTokenReplay):
		if delErr := r.Delete(ctx, replayed); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			return nil, delErr
		}
		return nil, ErrTokenReplay
	case errors.Is(err, redis.TxFailedErr):
		// another rotation consumed the token first
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return rotated, nil
}
