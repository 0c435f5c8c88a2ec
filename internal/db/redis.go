package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisVehicleRegistry reads fleet membership from a Redis set. Vehicles are
// added out of band, e.g. by cmd/seed.
type RedisVehicleRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisVehicleRegistry connects to Redis and verifies the connection.
func NewRedisVehicleRegistry(ctx context.Context, addr, password string, db int, key string) (*RedisVehicleRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisVehicleRegistry{client: client, key: key}, nil
}

func (r *RedisVehicleRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisVehicleRegistry) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember failed: %w", err)
	}
	return ok, nil
}

func (r *RedisVehicleRegistry) AllVehicleIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Register adds vehicle IDs to the set and returns how many were new.
func (r *RedisVehicleRegistry) Register(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	n, err := r.client.SAdd(ctx, r.key, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis sadd failed: %w", err)
	}
	return n, nil
}

// Unregister removes vehicle IDs from the set.
func (r *RedisVehicleRegistry) Unregister(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return r.client.SRem(ctx, r.key, members...).Err()
}
