package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryVerificationStore is an in-process VerificationStore for tests and
// single node development. Expiry is applied when records are read.
type MemoryVerificationStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]VerificationToken
	byUser map[uuid.UUID]map[string]struct{}
}

func NewMemoryVerificationStore(ttl time.Duration, now func() time.Time) *MemoryVerificationStore {
	if ttl <= 0 {
		ttl = VerificationTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryVerificationStore{
		ttl:    ttl,
		now:    now,
		tokens: make(map[string]VerificationToken),
		byUser: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (m *MemoryVerificationStore) Store(_ context.Context, userID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := hashToken(token)
	m.tokens[h] = VerificationToken{UserID: userID, CreatedAt: m.now()}
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]struct{})
	}
	m.byUser[userID][h] = struct{}{}
	return nil
}

func (m *MemoryVerificationStore) Lookup(_ context.Context, token string) (*VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := hashToken(token)
	vt, ok := m.tokens[h]
	if !ok {
		return nil, ErrVerificationTokenNotFound
	}
	if m.now().After(vt.ExpiresAt(m.ttl)) {
		m.removeLocked(h)
		return nil, ErrVerificationTokenNotFound
	}
	return &vt, nil
}

func (m *MemoryVerificationStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(hashToken(token))
	return nil
}

func (m *MemoryVerificationStore) DeleteAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h := range m.byUser[userID] {
		delete(m.tokens, h)
	}
	delete(m.byUser, userID)
	return nil
}

// Len reports the number of live tokens held for userID
func (m *MemoryVerificationStore) Len(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for h := range m.byUser[userID] {
		if vt, ok := m.tokens[h]; ok && !m.now().After(vt.ExpiresAt(m.ttl)) {
			n++
		}
	}
	return n
}

func (m *MemoryVerificationStore) removeLocked(h string) {
	vt, ok := m.tokens[h]
	if !ok {
		return
	}
	delete(m.tokens, h)
	if set := m.byUser[vt.UserID]; set != nil {
		delete(set, h)
		if len(set) == 0 {
			delete(m.byUser, vt.UserID)
		}
	}
}
