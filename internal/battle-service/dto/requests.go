package dto

// ParticipantPayload descreve um lado da batalha na criação.
// Tier é só exibição, não entra no cálculo de odds.
type ParticipantPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier,omitempty"`
}

type CreateBattleRequest struct {
	HostID          string             `json:"hostId"`
	ParticipantA    ParticipantPayload `json:"participant_a"`
	ParticipantB    ParticipantPayload `json:"participant_b"`
	DurationSeconds int                `json:"duration_seconds"`
}

// HostActionRequest cobre start/end/cancel: comandos exclusivos do host.
type HostActionRequest struct {
	HostID string `json:"hostId"`
}

type PlaceBetRequest struct {
	BettorID      string `json:"bettorId"`
	ParticipantID string `json:"participantId"`
	AmountCents   int64  `json:"amount_cents"`
}

type SendGiftRequest struct {
	GiftID        string `json:"giftId"` // chave de idempotência
	SenderID      string `json:"senderId"`
	ParticipantID string `json:"participantId"`
	CostCents     int64  `json:"cost_cents"`
	ScoreValue    int64  `json:"score_value"`
}
