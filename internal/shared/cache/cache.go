package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis conecta o cliente compartilhado por snapshot de batalha,
// cache de histórico e pub/sub do hub websocket.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
