package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/history/cache"
	"github.com/radieske/battle-arena-poc/internal/history/consumer"
	"github.com/radieske/battle-arena-poc/internal/history/pubsub"
	"github.com/radieske/battle-arena-poc/internal/history/repository"
	sharedcache "github.com/radieske/battle-arena-poc/internal/shared/cache"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	"github.com/radieske/battle-arena-poc/internal/shared/db"
	"github.com/radieske/battle-arena-poc/internal/shared/kafka"
	"github.com/radieske/battle-arena-poc/internal/shared/logger"
	"github.com/radieske/battle-arena-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Cache do último evento por tipo e repositório de histórico
	rcache := cache.NewRedisCache(redisClient, 60*time.Second)
	repo := repository.NewPostgresRepo(pg)

	// Consumer group do tópico battle_events
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBattleEvents, "history-worker")
	defer reader.Close()

	// Métricas Prometheus do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_db_writes_total", Help: "escritas no histórico"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "history_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		Cache:      rcache,
		Broadcast:  pubsub.NewRedisBroadcaster(redisClient),
		Channel:    cfg.RedisPubSubChannel,
		OnConsumed: func() { consumed.Inc() },
		OnCached:   func() { cached.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("history-worker started", zap.String("consume", cfg.TopicBattleEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("history-worker stopped")
}
