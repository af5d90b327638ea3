package auth

import (
	"fmt"
	"time"

	"github.com/dcrodman/tether/internal/core/cache"
	"github.com/dcrodman/tether/internal/core/redis"
)

// TokenStore tracks the session tokens that have been issued to connected clients.
type TokenStore interface {
	// Issue records token as belonging to owner. It fails with ErrTokenExists if
	// the token is still live.
	Issue(token, owner string, ttl time.Duration) error
	// Lookup returns the owner of a live token.
	Lookup(token string) (string, bool, error)
	// Revoke forgets token. Revoking an unknown token is not an error.
	Revoke(token string) error
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	cache *cache.Cache
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{cache: cache.New()}
}

func (s *MemoryTokenStore) Issue(token, owner string, ttl time.Duration) error {
	if err := s.cache.Add(token, owner, ttlOrForever(ttl)); err != nil {
		return ErrTokenExists
	}
	return nil
}

func (s *MemoryTokenStore) Lookup(token string) (string, bool, error) {
	v, ok := s.cache.Get(token)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *MemoryTokenStore) Revoke(token string) error {
	s.cache.Delete(token)
	return nil
}

func ttlOrForever(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return -1
	}
	return ttl
}

const redisKeyPrefix = "tether:token:"

// RedisTokenStore keeps tokens in redis so they survive server restarts.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Issue(token, owner string, ttl time.Duration) error {
	args := []interface{}{redisKeyPrefix + token, owner, "NX"}
	if ttl > 0 {
		args = append(args, "PX", ttl.Milliseconds())
	}

	reply, err := s.client.Do("SET", args...)
	if err != nil {
		return fmt.Errorf("error storing token: %w", err)
	}
	// SET NX replies with nil when the key already exists.
	if reply == nil {
		return ErrTokenExists
	}
	return nil
}

func (s *RedisTokenStore) Lookup(token string) (string, bool, error) {
	owner, err := redis.String(s.client.Do("GET", redisKeyPrefix+token))
	if err == redis.ErrNil {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("error looking up token: %w", err)
	}
	return owner, true, nil
}

func (s *RedisTokenStore) Revoke(token string) error {
	if _, err := s.client.Do("DEL", redisKeyPrefix+token); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}
	return nil
}
