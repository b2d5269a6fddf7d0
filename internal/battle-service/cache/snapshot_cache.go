package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda a última foto pública de cada batalha (placar/odds) no Redis.
// Serve o caminho de leitura; decisões de pagamento nunca saem daqui.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyBattle(battleID string) string { return "battle:snapshot:" + battleID }

func (c *Cache) GetSnapshot(ctx context.Context, battleID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyBattle(battleID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetSnapshot(ctx context.Context, battleID string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyBattle(battleID), b, ttl).Err()
}
