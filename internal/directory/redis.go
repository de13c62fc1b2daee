package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisNamespace prefixes every directory key so the store can share a
// Redis instance with other services.
const redisNamespace = "settler:users"

// RedisConfig carries the connection settings for a Redis-backed directory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"DIRECTORY_REDIS_ADDR"`
	Password string `yaml:"password" env:"DIRECTORY_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"DIRECTORY_REDIS_DB" env-default:"0"`
}

// Redis resolves users against a Redis instance. Profiles are stored as
// JSON documents under settler:users:<id>.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a directory to the given Redis instance. The connection
// is lazy; failures surface on first Lookup.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client}
}

// Lookup implements Directory. A missing key maps to ErrNotFound; any other
// Redis failure is reported as-is so callers can distinguish an absent user
// from an unreachable directory.
func (r *Redis) Lookup(ctx context.Context, userID string) (Profile, error) {
	raw, err := r.client.Get(ctx, redisNamespace+":"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: redis lookup for %q: %w", userID, err)
	}

	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("directory: decoding profile for %q: %w", userID, err)
	}
	return profile, nil
}

// Put stores or replaces a user profile. Used by provisioning tooling and
// tests; the pipeline itself only reads.
func (r *Redis) Put(ctx context.Context, userID string, profile Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("directory: encoding profile for %q: %w", userID, err)
	}
	if err := r.client.Set(ctx, redisNamespace+":"+userID, raw, 0).Err(); err != nil {
		return fmt.Errorf("directory: redis put for %q: %w", userID, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Directory = (*Redis)(nil)
