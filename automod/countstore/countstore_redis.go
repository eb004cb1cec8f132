package countstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix string = "count/"
var redisDistinctPrefix string = "distinct/"

// Counters in redis. Distinct counts use HyperLogLog, so they are approximate.
type RedisCountStore struct {
	Client *redis.Client
	Now    func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisCountStoreFromClient(rdb), nil
}

func NewRedisCountStoreFromClient(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{
		Client: rdb,
		Now:    time.Now,
	}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := redisCountPrefix + periodBucket(name, val, period, clockOrDefault(s.Now))
	c, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	now := clockOrDefault(s.Now)

	// increment all buckets in a single redis round-trip
	multi := s.Client.Pipeline()
	for _, p := range periodRetention {
		key := redisCountPrefix + periodBucket(name, val, p.Period, now)
		multi.Incr(ctx, key)
		if p.TTL > 0 {
			multi.Expire(ctx, key, p.TTL)
		}
	}
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	key := redisDistinctPrefix + periodBucket(name, bucket, period, clockOrDefault(s.Now))
	c, err := s.Client.PFCount(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	now := clockOrDefault(s.Now)

	multi := s.Client.Pipeline()
	for _, p := range periodRetention {
		key := redisDistinctPrefix + periodBucket(name, bucket, p.Period, now)
		multi.PFAdd(ctx, key, val)
		if p.TTL > 0 {
			multi.Expire(ctx, key, p.TTL)
		}
	}
	_, err := multi.Exec(ctx)
	return err
}
