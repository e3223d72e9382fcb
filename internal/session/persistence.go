package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/research-portal/research-portal/internal/models"
)

// Persisted key names. A session's durable state is exactly these two entries,
// and they are always written and cleared together.
const (
	TokenKey   = "auth_token"
	ProfileKey = "user"
)

// Snapshot is what a Persistence holds for one session id.
type Snapshot struct {
	Token string
	User  *models.User
}

// Empty reports whether nothing is persisted.
func (s Snapshot) Empty() bool {
	return s.Token == ""
}

// Persistence stores the bearer token and profile snapshot of a session so a
// browser can be re-authenticated after the in-memory store is gone.
type Persistence interface {
	Load(ctx context.Context, sid string) (Snapshot, error)
	Save(ctx context.Context, sid, token string, user *models.User) error
	Clear(ctx context.Context, sid string) error
}

// MemoryPersistence keeps snapshots in process memory. Sessions survive a
// store sweep but not a restart.
type MemoryPersistence struct {
	mu    sync.RWMutex
	items map[string]Snapshot
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{items: make(map[string]Snapshot)}
}

func (m *MemoryPersistence) Load(_ context.Context, sid string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.items[sid]
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap, nil
}

func (m *MemoryPersistence) Save(_ context.Context, sid, token string, user *models.User) error {
	var stored *models.User
	if user != nil {
		u := *user
		stored = &u
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[sid] = Snapshot{Token: token, User: stored}
	return nil
}

func (m *MemoryPersistence) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, sid)
	return nil
}

// Len returns the number of persisted sessions.
func (m *MemoryPersistence) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// TokenSealer encrypts tokens before they leave the process.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// RedisPersistence stores snapshots in Redis under <prefix>:<sid>:auth_token and
// <prefix>:<sid>:user, both with the same TTL.
type RedisPersistence struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	sealer TokenSealer
}

// NewRedisPersistence creates a Redis backed persistence. A zero ttl keeps keys forever.
func NewRedisPersistence(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisPersistence {
	if prefix == "" {
		prefix = "portal:session"
	}
	return &RedisPersistence{rdb: rdb, prefix: prefix, ttl: ttl}
}

// WithSealer stores tokens sealed by s instead of in the clear.
func (r *RedisPersistence) WithSealer(s TokenSealer) *RedisPersistence {
	r.sealer = s
	return r
}

func (r *RedisPersistence) key(sid, name string) string {
	return r.prefix + ":" + sid + ":" + name
}

func (r *RedisPersistence) Load(ctx context.Context, sid string) (Snapshot, error) {
	vals, err := r.rdb.MGet(ctx, r.key(sid, TokenKey), r.key(sid, ProfileKey)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: load %s: %w", sid, err)
	}

	var snap Snapshot
	if token, ok := vals[0].(string); ok && token != "" {
		if r.sealer != nil {
			opened, err := r.sealer.Open(token)
			if err != nil {
				return Snapshot{}, fmt.Errorf("session: open token %s: %w", sid, err)
			}
			token = opened
		}
		snap.Token = token
	}
	if raw, ok := vals[1].(string); ok && raw != "" {
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return Snapshot{}, fmt.Errorf("session: decode profile %s: %w", sid, err)
		}
		snap.User = &user
	}
	return snap, nil
}

func (r *RedisPersistence) Save(ctx context.Context, sid, token string, user *models.User) error {
	if token == "" {
		return errors.New("session: refusing to persist an empty token")
	}
	profile, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode profile: %w", err)
	}
	if r.sealer != nil {
		if token, err = r.sealer.Seal(token); err != nil {
			return fmt.Errorf("session: seal token: %w", err)
		}
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(sid, TokenKey), token, r.ttl)
		pipe.Set(ctx, r.key(sid, ProfileKey), profile, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save %s: %w", sid, err)
	}
	return nil
}

func (r *RedisPersistence) Clear(ctx context.Context, sid string) error {
	if err := r.rdb.Del(ctx, r.key(sid, TokenKey), r.key(sid, ProfileKey)).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", sid, err)
	}
	return nil
}
