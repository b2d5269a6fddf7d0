package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// RedisCache guarda o último evento de cada tipo por batalha.
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis do último evento de um tipo para a batalha
func key(battleID, eventType string) string { return "battle:last:" + eventType + ":" + battleID }

// SetLatest armazena o evento mais recente do tipo para a batalha
func (r *RedisCache) SetLatest(ctx context.Context, e events.BattleEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.BattleID, e.Type), b, r.TTL).Err()
}
