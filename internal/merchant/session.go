package merchant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/friendcoin/friendcoin/internal/apperr"
	"github.com/friendcoin/friendcoin/internal/currency"
)

const (
	StatusPending = "pending"
	StatusPaid    = "paid"

	sessionPrefix = "friendcoin:session:v1:"
	claimPrefix   = "friendcoin:session-claim:v1:"
)

var (
	// ErrSessionNotFound covers unknown and expired sessions alike.
	ErrSessionNotFound = apperr.New(http.StatusNotFound, "SESSION_NOT_FOUND", "payment session not found", nil)
	// ErrSessionAlreadyPaid rejects a second payment of the same session.
	ErrSessionAlreadyPaid = apperr.New(http.StatusConflict, "SESSION_ALREADY_PAID", "payment session already paid", nil)
	// ErrSessionNotRecorded means the payment committed but neither the session
	// nor its claim could be marked paid.
	ErrSessionNotRecorded = apperr.New(http.StatusInternalServerError, "SESSION_NOT_RECORDED", "payment committed but session state was not saved", nil)
)

// Session is a merchant's request to be paid a fixed amount once.
type Session struct {
	ID            string          `json:"id"`
	Merchant      string          `json:"merchant"`
	Amount        currency.Amount `json:"amount"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	PaidBy        string          `json:"paid_by,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// SessionStore keeps sessions until they expire. Claim reserves a session for
// exactly one payer; Release gives the reservation back after a failed payment
// and Settle records the committed transaction on the claim. Get reports a
// settled claim as paid even when the session record itself still says pending.
type SessionStore interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Claim(ctx context.Context, id, payer string, ttl time.Duration) (bool, error)
	Settle(ctx context.Context, id, payer, transactionID string) error
	Release(ctx context.Context, id string) error
}

// claim is the value kept under a session's claim key.
type claim struct {
	Payer         string `json:"payer"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (c claim) apply(s Session) Session {
	if c.TransactionID == "" || s.Status == StatusPaid {
		return s
	}
	s.Status = StatusPaid
	s.PaidBy = c.Payer
	s.TransactionID = c.TransactionID
	return s
}

// RedisSessionStore stores sessions as JSON strings with a TTL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps a Redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (r *RedisSessionStore) Save(ctx context.Context, s Session, ttl time.Duration) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionPrefix+s.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.Status == StatusPaid {
		return s, nil
	}

	raw, err = r.client.Get(ctx, claimPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session claim: %w", err)
	}
	var c claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return Session{}, fmt.Errorf("decode session claim: %w", err)
	}
	return c.apply(s), nil
}

func (r *RedisSessionStore) Claim(ctx context.Context, id, payer string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(claim{Payer: payer})
	if err != nil {
		return false, fmt.Errorf("encode session claim: %w", err)
	}
	ok, err := r.client.SetNX(ctx, claimPrefix+id, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}
	return ok, nil
}

func (r *RedisSessionStore) Settle(ctx context.Context, id, payer, transactionID string) error {
	payload, err := json.Marshal(claim{Payer: payer, TransactionID: transactionID})
	if err != nil {
		return fmt.Errorf("encode session claim: %w", err)
	}
	if err := r.client.Set(ctx, claimPrefix+id, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("settle session claim: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Release(ctx context.Context, id string) error {
	return r.client.Del(ctx, claimPrefix+id).Err()
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

type memoryClaim struct {
	claim
	until time.Time
}

// MemorySessionStore is used when no Redis is configured.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	claims   map[string]memoryClaim
	now      func() time.Time
}

// NewMemorySessionStore constructs an in-process session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		claims:   make(map[string]memoryClaim),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memoryEntry{session: s, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok || !m.now().Before(entry.expiresAt) {
		delete(m.sessions, id)
		return Session{}, ErrSessionNotFound
	}
	if c, ok := m.claims[id]; ok && m.now().Before(c.until) {
		return c.apply(entry.session), nil
	}
	return entry.session, nil
}

func (m *MemorySessionStore) Claim(_ context.Context, id, payer string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[id]; ok && m.now().Before(c.until) {
		return false, nil
	}
	m.claims[id] = memoryClaim{claim: claim{Payer: payer}, until: m.now().Add(ttl)}
	return true, nil
}

func (m *MemorySessionStore) Settle(_ context.Context, id, payer, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return fmt.Errorf("settle session claim: %s is not claimed", id)
	}
	c.Payer = payer
	c.TransactionID = transactionID
	m.claims[id] = c
	return nil
}

func (m *MemorySessionStore) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
	return nil
}
