// Package redis implements session.Store on Redis. Each session is one
// JSON-encoded list under a prefixed key, optionally expiring via TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	mscfg "github.com/mathsage/mathsage/config"
	mserrors "github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/message"
	"github.com/mathsage/mathsage/session"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces session keys. Defaults to "mathsage:session:".
	Prefix string
	// TTL expires idle sessions. Zero means no expiration.
	TTL time.Duration
}

// DefaultConfig returns settings for a local Redis instance.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "localhost:6379",
		Prefix: "mathsage:session:",
	}
}

// Store is a Redis-backed session store.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ session.Store = (*Store)(nil)

// New creates a Redis-backed session store.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Prefix == "" {
		config.Prefix = "mathsage:session:"
	}
	if err := mscfg.ValidateRedisConfig(config.Addr, config.DB, config.Prefix); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &Store{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}, nil
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Append adds messages to the session, refreshing its TTL.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...*message.Message) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id cannot be empty", mserrors.ErrInvalidInput)
	}
	if len(msgs) == 0 {
		return nil
	}

	key := s.key(sessionID)
	history, err := s.load(ctx, key)
	if err != nil && err != redis.Nil {
		return fmt.Errorf("load session: %w", err)
	}
	history = append(history, message.CloneMessages(msgs)...)

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session in Redis: %w", err)
	}
	return nil
}

// History returns the session's messages in order.
func (s *Store) History(ctx context.Context, sessionID string) ([]*message.Message, error) {
	history, err := s.load(ctx, s.key(sessionID))
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: session %q", mserrors.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return history, nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) load(ctx context.Context, key string) ([]*message.Message, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var history []*message.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return history, nil
}
