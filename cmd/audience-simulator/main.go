package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	bdto "github.com/radieske/battle-arena-poc/internal/battle-service/dto"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	"github.com/radieske/battle-arena-poc/internal/shared/logger"
	"github.com/radieske/battle-arena-poc/internal/shared/metrics"
)

// Catálogo fixo de presentes simulados (custo em centavos -> pontos)
var giftCatalog = []struct {
	Name  string
	Cost  int64
	Score int64
}{
	{"rose", 100, 1},
	{"confetti", 500, 6},
	{"rocket", 2_000, 30},
	{"dragon", 10_000, 180},
}

// Métricas Prometheus da carga gerada
var (
	giftsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_gifts_sent_total",
		Help: "presentes enviados com sucesso",
	})
	betsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_bets_sent_total",
		Help: "apostas aceitas",
	})
	requestsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_requests_failed_total",
		Help: "requisições rejeitadas ou com erro, por ação",
	}, []string{"action"})
	wsUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ws_updates_total",
		Help: "atualizações recebidas via WebSocket",
	})
)

// client é um cliente HTTP fino para os serviços da arena e da wallet.
type client struct {
	arenaURL  string
	walletURL string
	http      *http.Client
}

func (c *client) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e bdto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("http %d: %s", resp.StatusCode, e.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) deposit(ctx context.Context, userID string, cents int64, ref string) error {
	return c.postJSON(ctx, c.walletURL+"/wallet/deposit", map[string]any{
		"userId":       userID,
		"amount_cents": cents,
		"external_ref": ref,
	}, nil)
}

func (c *client) createBattle(ctx context.Context, req bdto.CreateBattleRequest) (bdto.BattleResponse, error) {
	var out bdto.BattleResponse
	err := c.postJSON(ctx, c.arenaURL+"/v1/battles", req, &out)
	return out, err
}

func (c *client) hostAction(ctx context.Context, battleID, action, hostID string) error {
	return c.postJSON(ctx, c.arenaURL+"/v1/battles/"+battleID+"/"+action, bdto.HostActionRequest{HostID: hostID}, nil)
}

func (c *client) placeBet(ctx context.Context, battleID string, req bdto.PlaceBetRequest) error {
	return c.postJSON(ctx, c.arenaURL+"/v1/battles/"+battleID+"/bets", req, nil)
}

func (c *client) sendGift(ctx context.Context, battleID string, req bdto.SendGiftRequest) error {
	return c.postJSON(ctx, c.arenaURL+"/v1/battles/"+battleID+"/gifts", req, nil)
}

func (c *client) getBattle(ctx context.Context, battleID string) (bdto.BattleResponse, error) {
	var out bdto.BattleResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.arenaURL+"/v1/battles/"+battleID, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return out, errors.New("http " + resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(giftsSent, betsSent, requestsFailed, wsUpdates)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := &client{
		arenaURL:  cfg.ArenaURL,
		walletURL: cfg.WalletURL,
		http:      &http.Client{Timeout: 5 * time.Second},
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	runID := uuid.NewString()[:8]

	// Popula as carteiras do público antes de abrir a batalha
	const audienceSize = 12
	users := make([]string, audienceSize)
	for i := range users {
		users[i] = fmt.Sprintf("viewer-%s-%02d", runID, i)
		if err := cli.deposit(ctx, users[i], 100_000, "seed:"+runID+":"+users[i]); err != nil {
			log.Fatal("seed deposit", zap.String("user", users[i]), zap.Error(err))
		}
	}
	log.Info("audience seeded", zap.Int("users", audienceSize))

	hostID := "host-" + runID
	battle, err := cli.createBattle(ctx, bdto.CreateBattleRequest{
		HostID:          hostID,
		ParticipantA:    bdto.ParticipantPayload{ID: "streamer-ana", DisplayName: "Ana", Tier: "gold"},
		ParticipantB:    bdto.ParticipantPayload{ID: "streamer-bia", DisplayName: "Bia", Tier: "silver"},
		DurationSeconds: 120,
	})
	if err != nil {
		log.Fatal("create battle", zap.Error(err))
	}
	log.Info("battle created", zap.String("battle_id", battle.BattleID))

	// Assina o WS antes do start para ver o ciclo de vida completo
	go watchWS(ctx, log, cfg.ArenaURL, battle.BattleID)

	if err := cli.hostAction(ctx, battle.BattleID, "start", hostID); err != nil {
		log.Fatal("start battle", zap.Error(err))
	}
	log.Info("battle started")

	participants := []string{"streamer-ana", "streamer-bia"}

	// Público: cada viewer alterna entre presentes e apostas até a batalha acabar
	var wg sync.WaitGroup
	done := make(chan struct{})
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-time.After(time.Duration(500+rng.Intn(2000)) * time.Millisecond):
				}
				target := participants[rng.Intn(len(participants))]
				if rng.Intn(100) < 70 {
					g := giftCatalog[rng.Intn(len(giftCatalog))]
					err := cli.sendGift(ctx, battle.BattleID, bdto.SendGiftRequest{
						GiftID:        uuid.NewString(),
						SenderID:      userID,
						ParticipantID: target,
						CostCents:     g.Cost,
						ScoreValue:    g.Score,
					})
					if err != nil {
						requestsFailed.WithLabelValues("gift").Inc()
						continue
					}
					giftsSent.Inc()
				} else {
					err := cli.placeBet(ctx, battle.BattleID, bdto.PlaceBetRequest{
						BettorID:      userID,
						ParticipantID: target,
						AmountCents:   int64(100 * (1 + rng.Intn(50))),
					})
					if err != nil {
						// Janela fechada e saldo insuficiente são esperados no fim da batalha
						requestsFailed.WithLabelValues("bet").Inc()
						continue
					}
					betsSent.Inc()
				}
			}
		}(userID)
	}

	// Observa a batalha até o estado terminal
	for {
		select {
		case <-ctx.Done():
			close(done)
			wg.Wait()
			return
		case <-time.After(2 * time.Second):
		}
		snap, err := cli.getBattle(ctx, battle.BattleID)
		if err != nil {
			log.Warn("get battle", zap.Error(err))
			continue
		}
		log.Info("battle snapshot",
			zap.String("status", snap.Status),
			zap.Int64("total_pool_cents", snap.TotalPoolCents),
			zap.Int("time_remaining_sec", snap.TimeRemainingSec),
		)
		if snap.Status == "ENDED" || snap.Status == "CANCELLED" {
			close(done)
			wg.Wait()
			log.Info("battle finished",
				zap.String("status", snap.Status),
				zap.String("winner_id", snap.WinnerID),
				zap.Int64("total_pool_cents", snap.TotalPoolCents),
				zap.Int("bettor_count", snap.BettorCount),
			)
			return
		}
	}
}

// watchWS assina as atualizações da batalha e alimenta a métrica de updates.
func watchWS(ctx context.Context, log *zap.Logger, arenaURL, battleID string) {
	wsURL := strings.Replace(arenaURL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		log.Warn("ws dial failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, _ := json.Marshal(map[string]string{"type": "subscribe", "battleId": battleID})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		log.Warn("ws subscribe failed", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		wsUpdates.Inc()
		log.Debug("ws update", zap.ByteString("payload", msg))
	}
}
