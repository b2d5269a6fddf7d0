package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/history/cache"
	"github.com/radieske/battle-arena-poc/internal/history/pubsub"
	"github.com/radieske/battle-arena-poc/internal/history/repository"
	"github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// Processor consome battle_events do Kafka, atualiza o cache, persiste o
// histórico e repassa a atualização para o canal Redis Pub/Sub do WS.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log       *zap.Logger
	Reader    *kafka.Reader
	Repo      *repository.PostgresRepo
	Cache     *cache.RedisCache
	Broadcast *pubsub.RedisBroadcaster
	Channel   string // canal Redis Pub/Sub de broadcast

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		var ev events.BattleEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			continue
		}

		// Atualiza cache Redis com o evento mais recente do tipo
		if err := p.Cache.SetLatest(ctx, ev); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("cache")
			}
			// não bloqueia persistência se falhar o cache
		} else if p.OnCached != nil {
			p.OnCached() // callback de métrica: cache atualizado
		}

		// Persiste o evento no histórico (idempotente por battle_id+seq)
		if err := p.Repo.InsertHistory(ctx, ev); err != nil {
			p.Log.Warn("db insert history failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("db_history")
			}
			continue
		}
		if p.OnPersist != nil {
			p.OnPersist() // callback de métrica: persistência concluída
		}

		// Repassa para o canal de broadcast consumido pelo hub WebSocket
		upd, _ := json.Marshal(pubsub.WSUpdate{BattleID: ev.BattleID, Payload: ev})
		if err := p.Broadcast.Publish(ctx, p.Channel, upd); err != nil {
			p.Log.Warn("redis publish failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("broadcast")
			}
		}
	}
}
