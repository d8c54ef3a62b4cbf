package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore remembers issued login nonces so each can be used once. A
// nonce belongs to the wallet it was issued for and only that wallet can
// consume it.
type NonceStore interface {
	Put(ctx context.Context, wallet, nonce string, ttl time.Duration) error
	// Consume removes the wallet's nonce and reports whether it was outstanding.
	Consume(ctx context.Context, wallet, nonce string) (bool, error)
}

func nonceKey(wallet, nonce string) string {
	return wallet + ":" + nonce
}

// RedisNonceStore keeps nonces in Redis with a TTL.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "emi:auth:nonce:"}
}

func (s *RedisNonceStore) Put(ctx context.Context, wallet, nonce string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+nonceKey(wallet, nonce), "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("nonce already issued")
	}
	return nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, wallet, nonce string) (bool, error) {
	_, err := s.client.GetDel(ctx, s.prefix+nonceKey(wallet, nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryNonceStore is a process-local NonceStore for single-instance
// deployments and tests.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryNonceStore) Put(_ context.Context, wallet, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey(wallet, nonce)
	now := s.now()
	for n, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, n)
		}
	}
	if exp, ok := s.nonces[key]; ok && exp.After(now) {
		return errors.New("nonce already issued")
	}
	s.nonces[key] = now.Add(ttl)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, wallet, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey(wallet, nonce)
	exp, ok := s.nonces[key]
	if !ok {
		return false, nil
	}
	delete(s.nonces, key)
	return exp.After(s.now()), nil
}
