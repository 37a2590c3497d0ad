// Package session stores per-conversation chat history so follow-up
// questions can carry context across turns.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/message"
)

// Record is the stored history for one conversation.
type Record struct {
	ID        string             `json:"id"`
	Messages  []*message.Message `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Store persists session history. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds messages to the session, creating it if needed.
	Append(ctx context.Context, sessionID string, msgs ...*message.Message) error

	// History returns the session's messages in order. Returns
	// errors.ErrNotFound for unknown sessions.
	History(ctx context.Context, sessionID string) ([]*message.Message, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Record)}
}

// Append adds messages to the session, creating it on first use.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...*message.Message) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id cannot be empty", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &Record{ID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = rec
	}
	rec.Messages = append(rec.Messages, message.CloneMessages(msgs)...)
	rec.UpdatedAt = now
	return nil
}

// History returns a copy of the session's messages.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", errors.ErrNotFound, sessionID)
	}
	return message.CloneMessages(rec.Messages), nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
