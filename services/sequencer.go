package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"customsdesk-backend/models"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedFunc reports how many numbers of a series were already issued before
// the counter existed.
type SeedFunc func() (int64, error)

// Sequencer issues strictly increasing numbers per series and year.
// tx is the caller's transaction; implementations that keep the counter in
// the database use it so a rolled back creation does not burn a number.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB, series string, year int, seed SeedFunc) (int64, error)
}

type DBSequencer struct{}

func NewDBSequencer() *DBSequencer { return &DBSequencer{} }

func (DBSequencer) Next(ctx context.Context, tx *gorm.DB, series string, year int, seed SeedFunc) (int64, error) {
	tx = tx.WithContext(ctx)

	bump := func() (bool, error) {
		res := tx.Model(&models.Sequence{}).
			Where("name = ? AND year = ?", series, year).
			Update("value", gorm.Expr("value + 1"))
		return res.RowsAffected > 0, res.Error
	}

	ok, err := bump()
	if err != nil {
		return 0, dbErr("advance sequence", err)
	}
	if !ok {
		start, err := seed()
		if err != nil {
			return 0, dbErr("seed sequence", err)
		}
		row := models.Sequence{Name: series, Year: year, Value: start + 1}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return 0, dbErr("create sequence", res.Error)
		}
		if res.RowsAffected == 1 {
			return row.Value, nil
		}
		// another writer seeded the row first
		if ok, err := bump(); err != nil || !ok {
			return 0, dbErr("advance sequence", errors.Join(err, errors.New("sequence row missing")))
		}
	}

	var row models.Sequence
	if err := tx.Where("name = ? AND year = ?", series, year).First(&row).Error; err != nil {
		return 0, dbErr("read sequence", err)
	}
	return row.Value, nil
}

// RedisSequencer keeps counters in redis so several API instances share
// one series.
type RedisSequencer struct {
	rdb    *redis.Client
	locker *redislock.Client
}

func NewRedisSequencer(rdb *redis.Client, locker *redislock.Client) *RedisSequencer {
	return &RedisSequencer{rdb: rdb, locker: locker}
}

func (s *RedisSequencer) key(series string, year int) string {
	return fmt.Sprintf("customsdesk:seq:%s:%d", series, year)
}

func (s *RedisSequencer) Next(ctx context.Context, _ *gorm.DB, series string, year int, seed SeedFunc) (int64, error) {
	key := s.key(series, year)

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, &PersistenceError{Op: "redis exists", Err: err}
	}
	if exists == 0 {
		if err := s.seed(ctx, key, seed); err != nil {
			return 0, err
		}
	}

	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, &PersistenceError{Op: "redis incr", Err: err}
	}
	return n, nil
}

func (s *RedisSequencer) seed(ctx context.Context, key string, seed SeedFunc) error {
	lock, err := s.locker.Obtain(ctx, key+":seed", 5*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return conflict("sequence %s is being initialised, retry", key)
	}
	if err != nil {
		return &PersistenceError{Op: "redis lock", Err: err}
	}
	defer lock.Release(ctx)

	start, err := seed()
	if err != nil {
		return dbErr("seed sequence", err)
	}
	if err := s.rdb.SetNX(ctx, key, strconv.FormatInt(start, 10), 0).Err(); err != nil {
		return &PersistenceError{Op: "redis setnx", Err: err}
	}
	return nil
}
