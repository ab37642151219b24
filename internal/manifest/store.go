package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expo-tickets/models"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no manifest exists for a reference. The
// materializer falls back to category inference in that case.
var ErrNotFound = errors.New("manifest: not found")

const keyPrefix = "manifest:"

// Manifest is the attendee data bridged across the payment redirect. The
// redirect abandons the in-memory flow entirely, so everything the
// materializer needs later is stored here, keyed by purchase reference.
type Manifest struct {
	Reference  string            `json:"reference"`
	CategoryID string            `json:"ticket_category_id"`
	Quantity   int               `json:"quantity"`
	Attendees  []models.Attendee `json:"attendees"`
	SavedAt    time.Time         `json:"saved_at"`
}

// Store persists manifests in Redis with a TTL backstop.
type Store struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Redis: client, TTL: ttl}
}

func Key(reference string) string {
	return fmt.Sprintf("%s%s", keyPrefix, reference)
}

// Save writes the manifest under its reference.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest save: json.Marshal: %w", err)
	}

	if err := s.Redis.Set(ctx, Key(m.Reference), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("manifest save: redis.Set: %w", err)
	}

	return nil
}

// Load fetches the manifest for a reference, ErrNotFound when absent or
// already expired.
func (s *Store) Load(ctx context.Context, reference string) (*Manifest, error) {
	data, err := s.Redis.Get(ctx, Key(reference)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("manifest load: redis.Get: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("manifest load: json.Unmarshal: %w", err)
	}

	return &m, nil
}

// Delete removes the manifest. Cleanup only; losing the race is harmless
// because the TTL reaps leftovers.
func (s *Store) Delete(ctx context.Context, reference string) error {
	if err := s.Redis.Del(ctx, Key(reference)).Err(); err != nil {
		return fmt.Errorf("manifest delete: redis.Del: %w", err)
	}
	return nil
}

// References lists the purchase references that still hold a manifest.
// SCAN keeps the sweep incremental so Redis is never blocked on a full
// keyspace walk.
func (s *Store) References(ctx context.Context) ([]string, error) {
	var refs []string

	iter := s.Redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		refs = append(refs, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("manifest references: redis.Scan: %w", err)
	}

	return refs, nil
}
