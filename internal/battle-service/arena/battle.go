package arena

import (
	"time"

	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	"github.com/radieske/battle-arena-poc/internal/battle-service/score"
)

// Status do ciclo de vida de uma batalha.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusStarting  Status = "STARTING"
	StatusLive      Status = "LIVE"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) terminal() bool { return s == StatusEnded || s == StatusCancelled }

// Participant é um dos dois lados da batalha. Tier é atributo de exibição,
// nunca entra no cálculo de odds.
type Participant struct {
	ID          string
	DisplayName string
	Tier        string
}

// battle é o agregado mutável de uma batalha. Pertence exclusivamente ao
// goroutine do ator; nada aqui carrega mutex próprio.
type battle struct {
	id              string
	hostID          string
	participants    [2]Participant
	status          Status
	durationSeconds int
	countdownEndsAt time.Time // fim da fase STARTING
	startedAt       time.Time // entrada em LIVE
	endsAt          time.Time // startedAt + duração
	winnerID        string
	seq             uint64 // ordem de emissão de eventos desta batalha

	board *score.Board
	pool  *pool.Pool
}

// timeRemaining deriva o tempo restante do relógio, nunca de estado armazenado.
func (b *battle) timeRemaining(now time.Time) time.Duration {
	if b.status != StatusLive {
		return time.Duration(b.durationSeconds) * time.Second
	}
	rem := b.endsAt.Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}

func (b *battle) nextSeq() uint64 {
	b.seq++
	return b.seq
}

// Snapshot é a visão de leitura de uma batalha, servida fora do caminho de
// escrita. Não pode ser usada para decidir pagamentos.
type Snapshot struct {
	BattleID         string
	HostID           string
	Status           Status
	Participants     [2]Participant
	Scores           map[string]int64
	Odds             map[string]float64
	TotalPoolCents   int64
	SideCents        map[string]int64
	BettorCount      int
	Locked           bool
	DurationSeconds  int
	TimeRemainingSec int
	WinnerID         string
}

// CreateParams descreve o comando de criação de batalha pelo host.
type CreateParams struct {
	BattleID        string // opcional; gerado quando vazio
	HostID          string
	ParticipantA    Participant
	ParticipantB    Participant
	DurationSeconds int
}
