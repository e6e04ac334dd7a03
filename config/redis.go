package config

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns a client and a lock client for addr. It retries the
// initial ping a few times before giving up.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, *redislock.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
		PoolSize: 20,
	})

	var err error
	const maxAttempts = 5
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			logg.WithField("addr", addr).Info("connected to redis")
			return rdb, redislock.New(rdb), nil
		}
		logg.WithField("attempt", attempt).Warnf("failed to connect redis: %v", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	_ = rdb.Close()
	return nil, nil, err
}
