// Package params serves organisation parameters: the issuer identity and
// document defaults printed on every order. Values live in org_parameters
// and are served through a Redis read-through cache because every render
// reads the full set.
package params

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Well-known parameter keys.
const (
	KeyOrgName         = "org.name"
	KeyOrgAddress      = "org.address"
	KeyOrgPhone        = "org.phone"
	KeyOrgEmail        = "org.email"
	KeyOrgTaxID        = "org.tax_id"
	KeyWorkshopAddress = "org.workshop_address"
	KeyPaymentTerms    = "doc.payment_terms"
	KeyFooterNote      = "doc.footer_note"
)

// ErrNotFound indicates the parameter key does not exist.
var ErrNotFound = fmt.Errorf("params: %w", shared.ErrNotFound)

const cacheKey = "params:all"

// Backend is the persistent side of the store.
type Backend interface {
	LoadAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store reads and writes organisation parameters.
type Store struct {
	backend Backend
	cache   *redis.Client
	ttl     time.Duration
}

// NewStore constructs a parameter store. cache may be nil, in which case
// every read hits the backend.
func NewStore(backend Backend, cache *redis.Client, ttl time.Duration) *Store {
	return &Store{backend: backend, cache: cache, ttl: ttl}
}

// All returns every parameter as a key/value map. Reads go through the
// cache; a miss loads from the backend and repopulates it.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	if s.cache != nil {
		cached, err := s.cache.HGetAll(ctx, cacheKey).Result()
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
	}
	values, err := s.backend.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, values)
	return values, nil
}

// Get returns one parameter value.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	values, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// Set upserts a parameter and invalidates the cache.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("params: empty key: %w", shared.ErrBadRequest)
	}
	if err := s.backend.Upsert(ctx, key, value); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Delete removes a parameter and invalidates the cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Store) fillCache(ctx context.Context, values map[string]string) {
	if s.cache == nil || len(values) == 0 {
		return
	}
	pipe := s.cache.TxPipeline()
	pipe.Del(ctx, cacheKey)
	fields := make(map[string]any, len(values))
	for k, v := range values {
		fields[k] = v
	}
	pipe.HSet(ctx, cacheKey, fields)
	pipe.Expire(ctx, cacheKey, s.ttl)
	_, _ = pipe.Exec(ctx)
}

func (s *Store) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKey).Err()
}

// PGBackend persists parameters in the org_parameters table.
type PGBackend struct {
	pool *pgxpool.Pool
}

// NewPGBackend returns a PostgreSQL backend.
func NewPGBackend(pool *pgxpool.Pool) *PGBackend {
	return &PGBackend{pool: pool}
}

// LoadAll returns the whole parameter set.
func (b *PGBackend) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT key, value FROM org_parameters`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

// Upsert writes one parameter.
func (b *PGBackend) Upsert(ctx context.Context, key, value string) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO org_parameters (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	return err
}

// Remove deletes one parameter.
func (b *PGBackend) Remove(ctx context.Context, key string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM org_parameters WHERE key=$1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}
