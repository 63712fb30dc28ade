package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
)

// RedisClient is a Client and Counter backed by a single redis server.
type RedisClient struct {
	logger log.Logger
	client *redis.Client
}

func (r *RedisClient) GetKey(k Keyer) ([]byte, time.Time, error) {
	ci, err := r.client.Get(k.Key()).Bytes()
	if err == redis.Nil {
		// cache miss, no need of logging
		return nil, time.Time{}, ErrNotCached
	} else if err != nil {
		_ = r.logger.Log("err", errors.Wrap(err, "fetching from redis"))
		return nil, time.Time{}, err
	}
	return EndianGet(ci)
}

func (r *RedisClient) SetKey(k Keyer, deadline time.Time, v []byte) error {
	expiry := GracePeriodDeadline(deadline)
	if err := r.client.Set(k.Key(), EndianCompose(EndianPut(deadline), v), expiry).Err(); err != nil {
		_ = r.logger.Log("err", errors.Wrap(err, "storing in redis"))
		return err
	}
	return nil
}

func (r *RedisClient) Incr(ctx context.Context, k Keyer) error {
	if err := r.client.WithContext(ctx).Incr(k.Key()).Err(); err != nil {
		return errors.Wrap(err, "incrementing in redis")
	}
	return nil
}

// Stop closes the connection pool.
func (r *RedisClient) Stop() {
	if err := r.client.Close(); err != nil {
		_ = r.logger.Log("err", errors.Wrap(err, "closing redis client"))
	}
}

type RedisConfig struct {
	Host     string
	Port     int
	Timeout  time.Duration
	MaxConns int
	Logger   log.Logger
}

func NewRedisClient(config RedisConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     config.MaxConns,
	})
	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &RedisClient{
		logger: logger,
		client: client,
	}
}
