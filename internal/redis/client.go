// Package redis holds everything the service keeps in Redis. Pub/sub carries the realtime
// bus, while plain keys hold caches and per-user quotas.
package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	// PoolSize of zero keeps the go-redis default of ten per CPU.
	PoolSize int
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  pingTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(cfg.options())
}

// Connect returns a client only once the server answers a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := NewClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.addr(), err)
	}
	return client, nil
}
