package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vipbot/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// IntakeStore holds per-buyer intake state. Entries older than the store's TTL
// behave as absent.
type IntakeStore interface {
	// Get returns nil when the buyer has no live intake.
	Get(ctx context.Context, subscriberID string) (*models.IntakeState, error)
	Set(ctx context.Context, state *models.IntakeState) error
	Delete(ctx context.Context, subscriberID string) error
	// Take removes and returns the intake only if it is in phase. Of several
	// concurrent callers at most one gets the state; the others get nil.
	Take(ctx context.Context, subscriberID string, phase models.IntakePhase) (*models.IntakeState, error)
	// EvictExpired drops stale entries and returns how many were dropped.
	EvictExpired(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type memoryIntakeStore struct {
	mu     sync.Mutex
	states map[string]models.IntakeState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryIntakeStore keeps intake state in process memory. A zero ttl disables expiry.
func NewMemoryIntakeStore(ttl time.Duration, now func() time.Time) IntakeStore {
	if now == nil {
		now = time.Now
	}
	return &memoryIntakeStore{
		states: make(map[string]models.IntakeState),
		ttl:    ttl,
		now:    now,
	}
}

func (m *memoryIntakeStore) expired(state models.IntakeState, now time.Time) bool {
	return m.ttl > 0 && now.Sub(state.UpdatedAt) >= m.ttl
}

func (m *memoryIntakeStore) Get(ctx context.Context, subscriberID string) (*models.IntakeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[subscriberID]
	if !ok {
		return nil, nil
	}
	if m.expired(state, m.now()) {
		delete(m.states, subscriberID)
		return nil, nil
	}
	return &state, nil
}

func (m *memoryIntakeStore) Set(ctx context.Context, state *models.IntakeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SubscriberID] = *state
	return nil
}

func (m *memoryIntakeStore) Delete(ctx context.Context, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, subscriberID)
	return nil
}

func (m *memoryIntakeStore) Take(ctx context.Context, subscriberID string, phase models.IntakePhase) (*models.IntakeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[subscriberID]
	if !ok {
		return nil, nil
	}
	if m.expired(state, m.now()) {
		delete(m.states, subscriberID)
		return nil, nil
	}
	if state.Phase != phase {
		return nil, nil
	}
	delete(m.states, subscriberID)
	return &state, nil
}

func (m *memoryIntakeStore) EvictExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for id, state := range m.states {
		if m.expired(state, now) {
			delete(m.states, id)
			evicted++
		}
	}
	return evicted, nil
}

func (m *memoryIntakeStore) Ping(ctx context.Context) error {
	return nil
}

type redisIntakeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client, accepting either host:port or a redis:// address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Str("addr", parsedAddr).Msg("Redis ping failed on initialization")
	}
	return client
}

// NewRedisIntakeStore keeps intake state in Redis; expiry is delegated to key TTLs.
func NewRedisIntakeStore(client *redis.Client, ttl time.Duration) IntakeStore {
	return &redisIntakeStore{client: client, ttl: ttl}
}

func intakeKey(subscriberID string) string {
	return fmt.Sprintf("vipbot:intake:%s", subscriberID)
}

func (r *redisIntakeStore) Get(ctx context.Context, subscriberID string) (*models.IntakeState, error) {
	data, err := r.client.Get(ctx, intakeKey(subscriberID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var state models.IntakeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *redisIntakeStore) Set(ctx context.Context, state *models.IntakeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, intakeKey(state.SubscriberID), data, r.ttl).Err()
}

func (r *redisIntakeStore) Delete(ctx context.Context, subscriberID string) error {
	return r.client.Del(ctx, intakeKey(subscriberID)).Err()
}

// Take watches the key so that a concurrent Take or Set aborts this transaction.
// A caller that loses the race sees no intake.
func (r *redisIntakeStore) Take(ctx context.Context, subscriberID string, phase models.IntakePhase) (*models.IntakeState, error) {
	key := intakeKey(subscriberID)
	var taken *models.IntakeState
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return nil
			}
			return err
		}
		var state models.IntakeState
		if err := json.Unmarshal(data, &state); err != nil {
			return err
		}
		if state.Phase != phase {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		taken = &state
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (r *redisIntakeStore) EvictExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *redisIntakeStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
