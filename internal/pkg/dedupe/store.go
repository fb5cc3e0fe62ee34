// Package dedupe records which externally delivered events were already
// processed, so redelivered events can be skipped.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrEmptyID = errors.New("dedupe: empty event id")

// Store keeps one key per event id with a TTL.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Claim marks the event as being processed. It returns false when the event
// was claimed before and the claim has not expired.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+id, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the next delivery of the event is processed again.
func (s *Store) Release(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := s.rdb.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return nil
}
