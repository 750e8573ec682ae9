package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/zalando/go-keyring"

	"github.com/ehealth-cst/ehealth-client/internal/config"
)

// KeyringBackend stores entries in the OS credential store. Each key gets its
// own service name so both tokens can share one account.
type KeyringBackend struct {
	service string
	account string
}

// NewKeyringBackend returns a backend writing to "<service>.<key>" for account.
func NewKeyringBackend(service, account string) *KeyringBackend {
	return &KeyringBackend{service: service, account: account}
}

func (k *KeyringBackend) serviceFor(key string) string {
	return k.service + "." + key
}

// Get reads key from the credential store. A missing entry is ErrNotFound.
func (k *KeyringBackend) Get(_ context.Context, key string) (string, error) {
	val, err := keyring.Get(k.serviceFor(key), k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

// Set writes value under key, replacing any previous entry.
func (k *KeyringBackend) Set(_ context.Context, key, value string) error {
	return keyring.Set(k.serviceFor(key), k.account, value)
}

// Delete removes key. A missing entry is ErrNotFound.
func (k *KeyringBackend) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.serviceFor(key), k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// RedisBackend stores entries under "<prefix>:<key>".
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing go-redis client.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get reads key. A missing key is ErrNotFound.
func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Set writes value under key with no expiry.
func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.redisKey(key), value, 0).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.redisKey(key)).Err()
}

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryBackend returns an empty backend. Entries are lost when the process exits.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]string)}
}

// Get reads key. A missing key is ErrNotFound.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// Set writes value under key.
func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// NewBackend selects the backend named by cfg.Backend. rdb is only used for "redis".
func NewBackend(cfg config.TokenStoreConfig, rdb *redis.Client) (Backend, error) {
	switch cfg.Backend {
	case "", "keyring":
		return NewKeyringBackend(cfg.Service, cfg.Account), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis token store selected but no redis client configured")
		}
		return NewRedisBackend(rdb, cfg.RedisKey), nil
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.Backend)
	}
}
