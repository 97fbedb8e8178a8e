package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
	touchedAt time.Time
}

// MemorySessionRepository keeps chat sessions in process memory, bounded by a
// TTL and a maximum number of chats. The least recently written chat is
// evicted when the bound is hit.
type MemorySessionRepository struct {
	mu         sync.Mutex
	entries    map[string]sessionEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemorySessionRepository constructs an in-memory store. ttl <= 0 disables
// expiry and maxEntries <= 0 disables the size bound.
func NewMemorySessionRepository(ttl time.Duration, maxEntries int) *MemorySessionRepository {
	return &MemorySessionRepository{
		entries:    make(map[string]sessionEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the chat's session or ErrSessionMiss.
func (r *MemorySessionRepository) Get(ctx context.Context, chatID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[chatID]
	if !ok {
		return nil, appErrors.ErrSessionMiss
	}
	if r.expired(entry) {
		delete(r.entries, chatID)
		return nil, appErrors.ErrSessionMiss
	}
	session := entry.session
	return &session, nil
}

// Put replaces the chat's session. Last writer wins.
func (r *MemorySessionRepository) Put(ctx context.Context, chatID string, session models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if _, exists := r.entries[chatID]; !exists && r.maxEntries > 0 && len(r.entries) >= r.maxEntries {
		r.evictLocked()
	}
	entry := sessionEntry{session: session, touchedAt: now}
	if r.ttl > 0 {
		entry.expiresAt = now.Add(r.ttl)
	}
	r.entries[chatID] = entry
	return nil
}

// Delete forgets the chat's session.
func (r *MemorySessionRepository) Delete(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, chatID)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *MemorySessionRepository) expired(entry sessionEntry) bool {
	return !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt)
}

// evictLocked drops expired sessions, or the oldest one if none expired.
func (r *MemorySessionRepository) evictLocked() {
	var oldestID string
	var oldest time.Time
	evicted := false
	for id, entry := range r.entries {
		if r.expired(entry) {
			delete(r.entries, id)
			evicted = true
			continue
		}
		if oldestID == "" || entry.touchedAt.Before(oldest) {
			oldestID = id
			oldest = entry.touchedAt
		}
	}
	if !evicted && oldestID != "" {
		delete(r.entries, oldestID)
	}
}
