package rediscache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	once   sync.Once
	client *redis.Client
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Init sets up the singleton Redis client, mirroring the teacher's
// service/storage/redis.go InitRedis/GetRedis pattern.
func Init(c Config) error {
	var initErr error
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = err
			return
		}
		client = rdb
	})
	return initErr
}

func Client() *redis.Client {
	if client == nil {
		panic("rediscache: not initialized, call Init first")
	}
	return client
}

func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}
