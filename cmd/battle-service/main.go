package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
	bcache "github.com/radieske/battle-arena-poc/internal/battle-service/cache"
	bhttp "github.com/radieske/battle-arena-poc/internal/battle-service/http"
	"github.com/radieske/battle-arena-poc/internal/battle-service/metricsx"
	kpub "github.com/radieske/battle-arena-poc/internal/battle-service/producer"
	"github.com/radieske/battle-arena-poc/internal/battle-service/repo"
	"github.com/radieske/battle-arena-poc/internal/battle-service/wallet"
	"github.com/radieske/battle-arena-poc/internal/battle-service/ws"
	"github.com/radieske/battle-arena-poc/internal/shared/cache"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	"github.com/radieske/battle-arena-poc/internal/shared/db"
	"github.com/radieske/battle-arena-poc/internal/shared/kafka"
	"github.com/radieske/battle-arena-poc/internal/shared/logger"
	"github.com/radieske/battle-arena-poc/internal/shared/metrics"
	ev "github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de snapshots + Pub/Sub do WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers: eventos de batalha e resoluções de aposta
	battleWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBattleEvents)
	defer battleWriter.Close()
	resolvedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	defer resolvedWriter.Close()

	// deps
	repository := repo.NewPostgres(pg)
	wcli := wallet.New(cfg.WalletURL)
	publ := kpub.NewKafkaPublisher(battleWriter, resolvedWriter)
	mset := metricsx.New(prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Batalhas deixadas abertas por um restart nunca voltam a rodar:
	// reembolsa as apostas ativas e marca como canceladas antes de aceitar tráfego.
	if err := recoverAbandoned(ctx, log, repository, publ); err != nil {
		log.Fatal("recover abandoned battles", zap.Error(err))
	}

	ar := arena.New(cfg.Battle, log, clockwork.NewRealClock(), wcli, publ, repository, mset.Hooks())

	// WS hub alimentado pelo canal Redis Pub/Sub (publicado pelo history-worker)
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	go ws.StartRedisSubscriber(ctx, rdb, hub)

	api := bhttp.NewServer(log, ar, bcache.New(rdb), hub)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	go func() {
		log.Info("battle-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = apiSrv.Shutdown(shutCtx)
	_ = metricsSrv.Shutdown(shutCtx)
	if err := ar.Shutdown(shutCtx); err != nil {
		log.Warn("arena shutdown", zap.Error(err))
	}
	log.Info("battle-service stopped")
}

// recoverAbandoned varre batalhas não terminais do processo anterior,
// reembolsa as apostas ainda ativas e marca a batalha como CANCELLED.
// O crédito em si é feito pelo payout-worker ao consumir bet_resolved.
func recoverAbandoned(ctx context.Context, log *zap.Logger, repository *repo.Postgres, publ *kpub.KafkaPublisher) error {
	open, err := repository.ListOpenBattles(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	for _, b := range open {
		bets, err := repository.ListBetsByBattle(ctx, b.ID)
		if err != nil {
			return err
		}
		refunded := 0
		for _, bet := range bets {
			if bet.Status != "ACTIVE" {
				continue
			}
			if err := repository.MarkBetRefunded(ctx, bet.ID, now); err != nil {
				return err
			}
			e := ev.BetResolved{
				BetID:         bet.ID,
				BattleID:      bet.BattleID,
				BettorID:      bet.BettorID,
				ParticipantID: bet.ParticipantID,
				Status:        ev.BetRefunded,
				StakeCents:    bet.AmountCents,
				OddsValue:     bet.OddsValue,
				PayoutCents:   bet.AmountCents,
				ExternalRef:   "refund:" + bet.ID,
				ResolvedAt:    now,
				TsUnixMs:      now.UnixMilli(),
			}
			if err := publ.PublishBetResolved(ctx, e); err != nil {
				return err
			}
			refunded++
		}
		if err := repository.UpdateBattleStatus(ctx, b.ID, arena.StatusCancelled, "", now); err != nil {
			return err
		}
		log.Warn("abandoned battle cancelled on boot",
			zap.String("battle_id", b.ID),
			zap.String("previous_status", b.Status),
			zap.Int("bets_refunded", refunded),
		)
	}
	return nil
}
