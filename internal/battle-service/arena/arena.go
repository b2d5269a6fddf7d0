package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	"github.com/radieske/battle-arena-poc/internal/battle-service/score"
	"github.com/radieske/battle-arena-poc/internal/shared/config"
)

var ErrValidation = errors.New("invalid command")

// Arena mantém as batalhas vivas, uma goroutine (ator) por batalha.
// Batalhas distintas nunca disputam o mesmo lock; dentro de uma batalha,
// todo comando é serializado pelo mailbox do ator.
type Arena struct {
	cfg    config.BattleConfig
	log    *zap.Logger
	clock  clockwork.Clock
	wallet Wallet
	sink   EventSink
	store  Store
	hooks  Hooks

	mu      sync.RWMutex
	battles map[string]*actor

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// New monta a arena. Em produção clock é clockwork.NewRealClock();
// nos testes um FakeClock dirige os ticks deterministicamente.
func New(cfg config.BattleConfig, log *zap.Logger, clock clockwork.Clock, wallet Wallet, sink EventSink, store Store, hooks Hooks) *Arena {
	return &Arena{
		cfg:     cfg,
		log:     log,
		clock:   clock,
		wallet:  wallet,
		sink:    sink,
		store:   store,
		hooks:   hooks,
		battles: make(map[string]*actor),
		done:    make(chan struct{}),
	}
}

// CreateBattle registra a batalha em WAITING e liga o relógio dela.
func (a *Arena) CreateBattle(ctx context.Context, p CreateParams) (Snapshot, error) {
	if p.HostID == "" || p.ParticipantA.ID == "" || p.ParticipantB.ID == "" {
		return Snapshot{}, fmt.Errorf("%w: host and both participants required", ErrValidation)
	}
	if p.ParticipantA.ID == p.ParticipantB.ID {
		return Snapshot{}, fmt.Errorf("%w: participants must be distinct", ErrValidation)
	}
	if p.DurationSeconds <= 0 {
		return Snapshot{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	id := p.BattleID
	if id == "" {
		id = uuid.NewString()
	}

	b := &battle{
		id:              id,
		hostID:          p.HostID,
		participants:    [2]Participant{p.ParticipantA, p.ParticipantB},
		status:          StatusWaiting,
		durationSeconds: p.DurationSeconds,
		board:           score.NewBoard(p.ParticipantA.ID, p.ParticipantB.ID),
		pool:            pool.New(a.cfg, id, p.ParticipantA.ID, p.ParticipantB.ID),
	}

	if err := a.store.InsertBattle(ctx, id, p.HostID, b.participants, p.DurationSeconds); err != nil {
		return Snapshot{}, fmt.Errorf("insert battle: %w", err)
	}

	ac := newActor(a, b)

	a.mu.Lock()
	if _, exists := a.battles[id]; exists {
		a.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: battle %s already exists", ErrValidation, id)
	}
	a.battles[id] = ac
	a.mu.Unlock()

	a.wg.Add(2)
	go ac.run()
	go ac.runClock(a.cfg.TickInterval)

	a.log.Info("battle created",
		zap.String("battle_id", id),
		zap.String("host_id", p.HostID),
		zap.Int("duration_seconds", p.DurationSeconds),
	)
	return ac.snapshotViaMailbox(ctx)
}

// StartBattle: WAITING -> STARTING, comando exclusivo do host.
func (a *Arena) StartBattle(ctx context.Context, battleID, hostID string) error {
	res, err := a.send(ctx, battleID, command{kind: cmdStart, ctx: ctx, callerID: hostID})
	if err != nil {
		return err
	}
	return res.err
}

// EndBattle força LIVE -> ENDED com resolução normal (término antecipado).
func (a *Arena) EndBattle(ctx context.Context, battleID, hostID string) error {
	res, err := a.send(ctx, battleID, command{kind: cmdEnd, ctx: ctx, callerID: hostID})
	if err != nil {
		return err
	}
	return res.err
}

// CancelBattle só é permitido em WAITING; reembolsa todas as apostas ativas.
func (a *Arena) CancelBattle(ctx context.Context, battleID, hostID string) error {
	res, err := a.send(ctx, battleID, command{kind: cmdCancel, ctx: ctx, callerID: hostID})
	if err != nil {
		return err
	}
	return res.err
}

// PlaceBet delega ao motor de pool dentro do turno do ator e devolve o betID.
func (a *Arena) PlaceBet(ctx context.Context, battleID, bettorID, participantID string, amountCents int64) (string, error) {
	if bettorID == "" || participantID == "" || amountCents <= 0 {
		return "", fmt.Errorf("%w: bettor, participant and positive amount required", ErrValidation)
	}
	res, err := a.send(ctx, battleID, command{
		kind:          cmdPlaceBet,
		ctx:           ctx,
		callerID:      bettorID,
		participantID: participantID,
		amountCents:   amountCents,
	})
	if err != nil {
		return "", err
	}
	return res.betID, res.err
}

// SendGift debita o custo e aplica o presente ao placar (idempotente por gift ID).
func (a *Arena) SendGift(ctx context.Context, battleID string, g score.Gift) (int64, error) {
	if g.ID == "" || g.SenderID == "" || g.ParticipantID == "" || g.CostCents < 0 || g.ScoreValue <= 0 {
		return 0, fmt.Errorf("%w: malformed gift event", ErrValidation)
	}
	g.BattleID = battleID
	res, err := a.send(ctx, battleID, command{kind: cmdSendGift, ctx: ctx, gift: g})
	if err != nil {
		return 0, err
	}
	return res.newScore, res.err
}

// Snapshot devolve a visão de leitura da batalha, servida pelo próprio ator
// para refletir um estado internamente consistente.
func (a *Arena) Snapshot(ctx context.Context, battleID string) (Snapshot, error) {
	res, err := a.send(ctx, battleID, command{kind: cmdSnapshot, ctx: ctx})
	if err != nil {
		return Snapshot{}, err
	}
	return res.snap, res.err
}

// Shutdown para relógios e atores; espera a drenagem até o contexto expirar.
func (a *Arena) Shutdown(ctx context.Context) error {
	a.once.Do(func() { close(a.done) })

	doneCh := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arena) lookup(battleID string) (*actor, error) {
	a.mu.RLock()
	ac, ok := a.battles[battleID]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrBattleNotFound
	}
	return ac, nil
}

// send enfileira um comando no mailbox do ator e espera a resposta.
// Mailbox cheio é raro; tenta de novo com espera curta antes de reportar
// conflito de concorrência ao chamador.
func (a *Arena) send(ctx context.Context, battleID string, cmd command) (result, error) {
	ac, err := a.lookup(battleID)
	if err != nil {
		return result{}, err
	}
	cmd.reply = make(chan result, 1)

	const attempts = 3
	enqueued := false
	for i := 0; i < attempts && !enqueued; i++ {
		wait := time.NewTimer(50 * time.Millisecond)
		select {
		case ac.mailbox <- cmd:
			enqueued = true
			wait.Stop()
		case <-ctx.Done():
			wait.Stop()
			return result{}, ctx.Err()
		case <-wait.C:
		}
	}
	if !enqueued {
		return result{}, ErrConcurrencyConflict
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// snapshotViaMailbox passa pelo mailbox para não ler o agregado por fora do ator.
func (ac *actor) snapshotViaMailbox(ctx context.Context) (Snapshot, error) {
	cmd := command{kind: cmdSnapshot, ctx: ctx, reply: make(chan result, 1)}
	select {
	case ac.mailbox <- cmd:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
