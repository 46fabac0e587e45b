package db

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

// InitRedis opens a client for addr; an empty addr leaves RDB nil and the
// count cache disabled.
func InitRedis(addr string) {
	if addr == "" {
		RDB = nil
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

func PingRedis(ctx context.Context) error {
	return RDB.Ping(ctx).Err()
}

func CloseRedis() {
	if RDB != nil {
		_ = RDB.Close()
	}
}
