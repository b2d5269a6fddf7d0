package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	"github.com/radieske/battle-arena-poc/internal/battle-service/score"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
	cevents "github.com/radieske/battle-arena-poc/pkg/contracts/events"
)

// hookCounts acumula as chamadas dos hooks de métrica durante um teste.
type hookCounts struct {
	rejected []string
	ended    []string
	forced   int
	placed   int
	gifts    int
	dupGifts int
}

func (h *hookCounts) hooks() Hooks {
	return Hooks{
		OnBetPlaced:     func() { h.placed++ },
		OnBetRejected:   func(reason string) { h.rejected = append(h.rejected, reason) },
		OnGiftApplied:   func() { h.gifts++ },
		OnGiftDuplicate: func() { h.dupGifts++ },
		OnBattleEnded:   func(reason string) { h.ended = append(h.ended, reason) },
		OnForcedEnd:     func() { h.forced++ },
	}
}

// newTestActor monta um ator sem goroutines: os handlers são chamados
// diretamente, o que torna a máquina de estados totalmente determinística.
func newTestActor(t *testing.T, cfg config.BattleConfig) (*actor, *fakeWallet, *recordingSink, *clockwork.FakeClock, *hookCounts) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	w := &fakeWallet{}
	sink := &recordingSink{}
	hc := &hookCounts{}
	a := New(cfg, zap.NewNop(), fc, w, sink, NopStore{}, hc.hooks())

	b := &battle{
		id:              "b1",
		hostID:          "host-1",
		participants:    [2]Participant{{ID: "p1", DisplayName: "Ana"}, {ID: "p2", DisplayName: "Bia"}},
		status:          StatusWaiting,
		durationSeconds: 120,
		board:           score.NewBoard("p1", "p2"),
		pool:            pool.New(cfg, "b1", "p1", "p2"),
	}
	return newActor(a, b), w, sink, fc, hc
}

func hostCmd(caller string) command {
	return command{ctx: context.Background(), callerID: caller}
}

func TestStartTransitionsToStarting(t *testing.T) {
	ac, _, sink, fc, _ := newTestActor(t, testConfig())

	if err := ac.handleStart(hostCmd("host-1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ac.b.status != StatusStarting {
		t.Fatalf("status = %s, want STARTING", ac.b.status)
	}
	wantCountdown := fc.Now().Add(time.Duration(testConfig().CountdownSeconds) * time.Second)
	if !ac.b.countdownEndsAt.Equal(wantCountdown) {
		t.Fatalf("countdown ends at %v, want %v", ac.b.countdownEndsAt, wantCountdown)
	}

	evs := sink.battleEvents()
	if len(evs) != 1 || evs[0].Type != cevents.TypeBattleStateChanged {
		t.Fatalf("events = %+v, want one state change", evs)
	}
	if evs[0].StateChanged.From != "WAITING" || evs[0].StateChanged.To != "STARTING" {
		t.Fatalf("transition = %s -> %s", evs[0].StateChanged.From, evs[0].StateChanged.To)
	}
}

func TestStartRejectsNonHostAndWrongState(t *testing.T) {
	ac, _, _, _, _ := newTestActor(t, testConfig())

	if err := ac.handleStart(hostCmd("intruder")); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("err = %v, want ErrAuthorization", err)
	}
	ac.b.status = StatusLive
	if err := ac.handleStart(hostCmd("host-1")); !errors.Is(err, ErrState) {
		t.Fatalf("err = %v, want ErrState", err)
	}
}

func TestCountdownEntersLiveOnTick(t *testing.T) {
	ac, _, _, fc, _ := newTestActor(t, testConfig())

	if err := ac.handleStart(hostCmd("host-1")); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Antes do fim da contagem regressiva não acontece nada.
	ac.handleTick(fc.Now())
	if ac.b.status != StatusStarting {
		t.Fatalf("status = %s, want STARTING", ac.b.status)
	}

	liveAt := ac.b.countdownEndsAt
	ac.handleTick(liveAt)
	if ac.b.status != StatusLive {
		t.Fatalf("status = %s, want LIVE", ac.b.status)
	}
	if !ac.b.startedAt.Equal(liveAt) {
		t.Fatalf("started at %v, want %v", ac.b.startedAt, liveAt)
	}
	wantEnd := liveAt.Add(120 * time.Second)
	if !ac.b.endsAt.Equal(wantEnd) {
		t.Fatalf("ends at %v, want %v", ac.b.endsAt, wantEnd)
	}
}

func TestClockEndsBattleAtDeadline(t *testing.T) {
	ac, _, _, _, hc := newTestActor(t, testConfig())

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	// Um tick antes do prazo não encerra.
	ac.handleTick(ac.b.endsAt.Add(-time.Second))
	if ac.b.status != StatusLive {
		t.Fatalf("status = %s, want LIVE", ac.b.status)
	}

	ac.handleTick(ac.b.endsAt)
	if ac.b.status != StatusEnded {
		t.Fatalf("status = %s, want ENDED", ac.b.status)
	}
	if len(hc.ended) != 1 || hc.ended[0] != "clock" {
		t.Fatalf("ended reasons = %v, want [clock]", hc.ended)
	}
}

func TestWatchdogForcesEnd(t *testing.T) {
	ac, _, sink, _, hc := newTestActor(t, testConfig())

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	// Ticks perdidos: o próximo tick chega já além de duração + folga.
	late := ac.b.startedAt.Add(120*time.Second + 10*time.Second + time.Second)
	ac.handleTick(late)

	if ac.b.status != StatusEnded {
		t.Fatalf("status = %s, want ENDED", ac.b.status)
	}
	if hc.forced != 1 {
		t.Fatalf("forced end count = %d, want 1", hc.forced)
	}
	if len(hc.ended) != 1 || hc.ended[0] != "watchdog" {
		t.Fatalf("ended reasons = %v, want [watchdog]", hc.ended)
	}

	var sawDesync bool
	for _, e := range sink.battleEvents() {
		if e.Type == cevents.TypeClockDesync {
			sawDesync = true
			if e.ClockDesync.DurationSeconds != 120 || !e.ClockDesync.DetectedAt.Equal(late) {
				t.Fatalf("desync payload = %+v", e.ClockDesync)
			}
		}
	}
	if !sawDesync {
		t.Fatal("expected clock_desync event")
	}
}

func TestLockNearEndClosesWindow(t *testing.T) {
	ac, _, _, _, _ := newTestActor(t, testConfig()) // lead 30s, duração 120s

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	// 89s depois do início restam 31s: ainda aberto.
	ac.handleTick(ac.b.startedAt.Add(89 * time.Second))
	if ac.b.pool.Locked() {
		t.Fatal("window locked too early")
	}

	// 90s: restam exatamente 30s, trava.
	ac.handleTick(ac.b.startedAt.Add(90 * time.Second))
	if !ac.b.pool.Locked() {
		t.Fatal("window must be locked at lead time")
	}

	if _, err := ac.handlePlaceBet(command{ctx: context.Background(), callerID: "u1", participantID: "p1", amountCents: 1_000}); !errors.Is(err, pool.ErrWindowClosed) {
		t.Fatalf("bet err = %v, want ErrWindowClosed", err)
	}
}

func TestLockOnStartClosesWindowImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.WindowPolicy = config.WindowLockOnStart
	ac, _, _, _, hc := newTestActor(t, cfg)

	// Antes do start a janela está aberta.
	if _, err := ac.handlePlaceBet(command{ctx: context.Background(), callerID: "u1", participantID: "p1", amountCents: 1_000}); err != nil {
		t.Fatalf("bet before start: %v", err)
	}

	ac.handleStart(hostCmd("host-1"))
	if !ac.b.pool.Locked() {
		t.Fatal("lock_on_start must lock the pool at start")
	}
	if _, err := ac.handlePlaceBet(command{ctx: context.Background(), callerID: "u2", participantID: "p1", amountCents: 1_000}); !errors.Is(err, pool.ErrWindowClosed) {
		t.Fatalf("bet err = %v, want ErrWindowClosed", err)
	}
	if len(hc.rejected) != 1 || hc.rejected[0] != "window_closed" {
		t.Fatalf("rejected reasons = %v, want [window_closed]", hc.rejected)
	}
}

func TestEndResolvesWinnerAndLoserBets(t *testing.T) {
	ac, _, sink, _, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	// Apostas antes do início: 1000 em p1 (odds 2.0) e 3000 em p2 (lado vazio, 3.0).
	winID, err := ac.handlePlaceBet(command{ctx: ctx, callerID: "u1", participantID: "p1", amountCents: 1_000})
	if err != nil {
		t.Fatalf("bet 1: %v", err)
	}
	loseID, err := ac.handlePlaceBet(command{ctx: ctx, callerID: "u2", participantID: "p2", amountCents: 3_000})
	if err != nil {
		t.Fatalf("bet 2: %v", err)
	}

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	if _, err := ac.handleSendGift(command{ctx: ctx, gift: score.Gift{
		ID: "g1", SenderID: "u3", ParticipantID: "p1", CostCents: 100, ScoreValue: 5,
	}}); err != nil {
		t.Fatalf("gift: %v", err)
	}

	if err := ac.handleEnd(hostCmd("host-1")); err != nil {
		t.Fatalf("end: %v", err)
	}
	if ac.b.status != StatusEnded || ac.b.winnerID != "p1" {
		t.Fatalf("status=%s winner=%q, want ENDED p1", ac.b.status, ac.b.winnerID)
	}

	byID := map[string]cevents.BetResolved{}
	for _, r := range sink.resolvedEvents() {
		byID[r.BetID] = r
	}
	if win := byID[winID]; win.Status != cevents.BetWon || win.PayoutCents != 2_000 {
		t.Fatalf("winner bet = %+v, want WON 2000", win)
	}
	if lose := byID[loseID]; lose.Status != cevents.BetLost || lose.PayoutCents != 0 {
		t.Fatalf("loser bet = %+v, want LOST 0", lose)
	}
}

func TestTieRefundsOnEnd(t *testing.T) {
	ac, _, sink, _, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	betID, err := ac.handlePlaceBet(command{ctx: ctx, callerID: "u1", participantID: "p1", amountCents: 2_000})
	if err != nil {
		t.Fatalf("bet: %v", err)
	}

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	// Placar 0x0: sem vencedor.
	if err := ac.handleEnd(hostCmd("host-1")); err != nil {
		t.Fatalf("end: %v", err)
	}
	if ac.b.winnerID != "" {
		t.Fatalf("winner = %q, want empty on tie", ac.b.winnerID)
	}

	resolved := sink.resolvedEvents()
	if len(resolved) != 1 {
		t.Fatalf("resolved = %d, want 1", len(resolved))
	}
	if r := resolved[0]; r.BetID != betID || r.Status != cevents.BetRefunded || r.PayoutCents != 2_000 {
		t.Fatalf("resolved = %+v, want REFUNDED 2000", r)
	}
}

func TestGiftIdempotentBySameID(t *testing.T) {
	ac, w, sink, _, hc := newTestActor(t, testConfig())
	ctx := context.Background()

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	g := score.Gift{ID: "g1", SenderID: "u1", ParticipantID: "p1", CostCents: 500, ScoreValue: 7}
	first, err := ac.handleSendGift(command{ctx: ctx, gift: g})
	if err != nil {
		t.Fatalf("gift: %v", err)
	}
	again, err := ac.handleSendGift(command{ctx: ctx, gift: g})
	if err != nil {
		t.Fatalf("gift replay: %v", err)
	}
	if first != 7 || again != 7 {
		t.Fatalf("scores = %d, %d, want 7, 7", first, again)
	}

	// Replay não debita de novo nem emite segundo evento de placar.
	if w.debitCount() != 1 {
		t.Fatalf("debits = %d, want 1", w.debitCount())
	}
	if hc.dupGifts != 1 {
		t.Fatalf("dup gifts = %d, want 1", hc.dupGifts)
	}
	scoreEvents := 0
	for _, e := range sink.battleEvents() {
		if e.Type == cevents.TypeScoreUpdated {
			scoreEvents++
		}
	}
	if scoreEvents != 1 {
		t.Fatalf("score events = %d, want 1", scoreEvents)
	}
}

func TestGiftDebitFailureKeepsScore(t *testing.T) {
	ac, w, _, _, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	w.insufficient = map[string]bool{"broke": true}
	g := score.Gift{ID: "g1", SenderID: "broke", ParticipantID: "p1", CostCents: 500, ScoreValue: 7}
	if _, err := ac.handleSendGift(command{ctx: ctx, gift: g}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := ac.b.board.Score("p1"); got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
	// O gift não foi aplicado: o mesmo ID pode tentar de novo depois do depósito.
	if ac.b.board.Seen("g1") {
		t.Fatal("failed gift must not be marked as applied")
	}
}

func TestFreeGiftScoresWithoutWallet(t *testing.T) {
	ac, w, _, _, hc := newTestActor(t, testConfig())
	ctx := context.Background()

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	// Carteira fora do ar: presente de custo zero não pode depender dela.
	w.mu.Lock()
	w.err = errors.New("connection refused")
	w.mu.Unlock()

	g := score.Gift{ID: "g1", SenderID: "u1", ParticipantID: "p1", CostCents: 0, ScoreValue: 3}
	newScore, err := ac.handleSendGift(command{ctx: ctx, gift: g})
	if err != nil {
		t.Fatalf("free gift: %v", err)
	}
	if newScore != 3 {
		t.Fatalf("score = %d, want 3", newScore)
	}
	if w.debitCount() != 0 {
		t.Fatalf("debits = %d, want 0", w.debitCount())
	}
	if hc.gifts != 1 {
		t.Fatalf("gifts applied = %d, want 1", hc.gifts)
	}
}

func TestGiftUnknownParticipant(t *testing.T) {
	ac, w, _, _, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)

	g := score.Gift{ID: "g1", SenderID: "u1", ParticipantID: "p9", CostCents: 500, ScoreValue: 7}
	if _, err := ac.handleSendGift(command{ctx: ctx, gift: g}); !errors.Is(err, score.ErrUnknownParticipant) {
		t.Fatalf("err = %v, want ErrUnknownParticipant", err)
	}
	if w.debitCount() != 0 {
		t.Fatalf("debits = %d, want 0", w.debitCount())
	}
}

func TestTerminalStateRejectsCommands(t *testing.T) {
	ac, _, _, _, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	ac.handleStart(hostCmd("host-1"))
	ac.handleTick(ac.b.countdownEndsAt)
	if err := ac.handleEnd(hostCmd("host-1")); err != nil {
		t.Fatalf("end: %v", err)
	}

	if err := ac.handleStart(hostCmd("host-1")); !errors.Is(err, ErrState) {
		t.Fatalf("start after end err = %v, want ErrState", err)
	}
	if err := ac.handleEnd(hostCmd("host-1")); !errors.Is(err, ErrState) {
		t.Fatalf("double end err = %v, want ErrState", err)
	}
	if err := ac.handleCancel(hostCmd("host-1")); !errors.Is(err, ErrState) {
		t.Fatalf("cancel after end err = %v, want ErrState", err)
	}
	if _, err := ac.handlePlaceBet(command{ctx: ctx, callerID: "u1", participantID: "p1", amountCents: 1_000}); !errors.Is(err, pool.ErrWindowClosed) {
		t.Fatalf("bet after end err = %v, want ErrWindowClosed", err)
	}
	if _, err := ac.handleSendGift(command{ctx: ctx, gift: score.Gift{ID: "g", SenderID: "u", ParticipantID: "p1", ScoreValue: 1}}); !errors.Is(err, ErrState) {
		t.Fatalf("gift after end err = %v, want ErrState", err)
	}
}

func TestCancelOnlyFromWaiting(t *testing.T) {
	ac, _, _, _, _ := newTestActor(t, testConfig())

	ac.handleStart(hostCmd("host-1"))
	if err := ac.handleCancel(hostCmd("host-1")); !errors.Is(err, ErrState) {
		t.Fatalf("cancel in STARTING err = %v, want ErrState", err)
	}
}
