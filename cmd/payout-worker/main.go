package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/wallet"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	"github.com/radieske/battle-arena-poc/internal/shared/kafka"
	"github.com/radieske/battle-arena-poc/internal/shared/logger"
	"github.com/radieske/battle-arena-poc/internal/shared/metrics"
	ev "github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

var (
	credited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_credits_total",
		Help: "créditos efetivados por status da aposta",
	}, []string{"status"})
	creditedCents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_credited_cents_total",
		Help: "total em centavos creditado nas carteiras",
	})
	skipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_skipped_total",
		Help: "eventos sem crédito (LOST ou payout zero)",
	})
	deadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_dead_lettered_total",
		Help: "eventos enviados para a DLQ após esgotar retries",
	})
	procErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_errors_total",
		Help: "erros por estágio",
	}, []string{"stage"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(credited, creditedCents, skipped, deadLettered, procErrors)

	// Kafka consumer: resoluções de aposta emitidas pelo battle-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetResolved, "payout-worker")
	defer reader.Close()

	// DLQ para eventos que esgotaram os retries de crédito
	var dlqWriter *kafkago.Writer
	if cfg.TopicBetResolvedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolvedDLQ)
		defer dlqWriter.Close()
	}

	// O crédito é idempotente no wallet-service pelo external_ref:
	// reentrega do Kafka ou retry não paga duas vezes.
	wcli := wallet.New(cfg.WalletURL)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("payout-worker started", zap.String("consume", cfg.TopicBetResolved))

	// Loop principal: consome bet_resolved e credita as carteiras
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("payout-worker stopped")
				return
			}
			log.Warn("kafka read", zap.Error(err))
			procErrors.WithLabelValues("read").Inc()
			time.Sleep(time.Second)
			continue
		}

		var resolved ev.BetResolved
		if jerr := json.Unmarshal(msg.Value, &resolved); jerr != nil {
			log.Error("unmarshal bet_resolved", zap.Error(jerr))
			procErrors.WithLabelValues("decode").Inc()
			continue
		}

		if err := processOne(ctx, log, wcli, &resolved); err != nil {
			log.Error("credit failed after retries",
				zap.String("bet_id", resolved.BetID),
				zap.String("external_ref", resolved.ExternalRef),
				zap.Error(err),
			)
			procErrors.WithLabelValues("credit").Inc()
			if dlqWriter != nil {
				if derr := kafka.WriteJSON(ctx, dlqWriter, resolved.BetID, msg.Value); derr != nil {
					log.Error("dlq write", zap.Error(derr))
					procErrors.WithLabelValues("dlq").Inc()
				} else {
					deadLettered.Inc()
				}
			}
		}
	}
}

// processOne credita o payout de uma resolução na carteira do apostador.
// LOST e payout zero não geram chamada ao wallet-service.
func processOne(ctx context.Context, log *zap.Logger, wcli *wallet.Client, resolved *ev.BetResolved) error {
	if resolved.Status == ev.BetLost || resolved.PayoutCents <= 0 {
		skipped.Inc()
		return nil
	}

	var err error
	const retries = 3
	for i := 0; i < retries; i++ {
		var balance int64
		balance, err = wcli.Credit(ctx, resolved.BettorID, resolved.PayoutCents, resolved.ExternalRef)
		if err == nil {
			credited.WithLabelValues(resolved.Status).Inc()
			creditedCents.Add(float64(resolved.PayoutCents))
			log.Info("wallet credited",
				zap.String("bet_id", resolved.BetID),
				zap.String("bettor_id", resolved.BettorID),
				zap.String("status", resolved.Status),
				zap.Int64("payout_cents", resolved.PayoutCents),
				zap.Int64("new_balance_cents", balance),
			)
			return nil
		}
		// Backoff simples antes do próximo retry
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}
