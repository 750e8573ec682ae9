// Package tokenstore persists the access/refresh credential pair in a secure
// credential store. Reads never fail: a storage error is logged and reported
// as absent credentials.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// Fixed credential keys.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

var (
	// ErrNotFound is returned by a Backend when the entry does not exist.
	ErrNotFound = errors.New("credential not found")
	// ErrSuperseded is returned by SetTokensAt when RemoveTokens ran after the epoch was read.
	ErrSuperseded = errors.New("credentials removed since epoch")
)

// Backend is a key/value secure storage.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store owns the credential pair. It is safe for concurrent use.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu    sync.Mutex
	epoch uint64
}

// New builds a store on top of backend.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger.Named("tokenstore")}
}

// SetTokens stores access and, when non-empty, refresh. An empty refresh deletes
// any previously stored refresh token.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, access, refresh)
}

// Epoch returns the current removal epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// SetTokensAt behaves like SetTokens unless RemoveTokens ran after epoch was read,
// in which case nothing is written and ErrSuperseded is returned.
func (s *Store) SetTokensAt(ctx context.Context, epoch uint64, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.logger.Warn("discarding token write from a superseded session")
		return ErrSuperseded
	}
	return s.setLocked(ctx, access, refresh)
}

func (s *Store) setLocked(ctx context.Context, access, refresh string) error {
	if access == "" {
		return errors.New("access token is required")
	}
	s.logger.Debug("storing tokens", zap.Bool("refresh_present", refresh != ""))

	if err := s.backend.Set(ctx, AccessTokenKey, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if refresh != "" {
		if err := s.backend.Set(ctx, RefreshTokenKey, refresh); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return nil
	}
	if err := s.backend.Delete(ctx, RefreshTokenKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear stale refresh token: %w", err)
	}
	return nil
}

// GetTokens returns the stored pair. Any storage failure yields the empty pair.
func (s *Store) GetTokens(ctx context.Context) domain.CredentialPair {
	access, err := s.read(ctx, AccessTokenKey)
	if err != nil {
		s.logger.Error("reading tokens", zap.Error(err))
		return domain.CredentialPair{}
	}
	refresh, err := s.read(ctx, RefreshTokenKey)
	if err != nil {
		s.logger.Error("reading tokens", zap.Error(err))
		return domain.CredentialPair{}
	}

	s.logger.Debug("retrieved tokens",
		zap.Bool("access_present", access != ""),
		zap.Bool("refresh_present", refresh != ""))
	return domain.CredentialPair{AccessToken: access, RefreshToken: refresh}
}

func (s *Store) read(ctx context.Context, key string) (string, error) {
	val, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}

// RemoveTokens deletes both entries. Failures are logged and never returned so
// removal cannot block logout.
func (s *Store) RemoveTokens(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++

	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Error("removing token", zap.String("key", key), zap.Error(err))
		}
	}
	s.logger.Debug("tokens removed")
}
