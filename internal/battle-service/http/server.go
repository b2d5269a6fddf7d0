package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
	"github.com/radieske/battle-arena-poc/internal/battle-service/cache"
	"github.com/radieske/battle-arena-poc/internal/battle-service/dto"
	"github.com/radieske/battle-arena-poc/internal/battle-service/pool"
	"github.com/radieske/battle-arena-poc/internal/battle-service/score"
	"github.com/radieske/battle-arena-poc/internal/battle-service/ws"
)

// Server expõe a API REST da arena e o endpoint WebSocket de acompanhamento.
// Os comandos vão direto para o ator da batalha; leituras passam pelo cache.
type Server struct {
	log   *zap.Logger
	arena *arena.Arena
	cache *cache.Cache // snapshot de leitura; nil desliga o cache
	hub   *ws.Hub
}

func NewServer(log *zap.Logger, a *arena.Arena, c *cache.Cache, hub *ws.Hub) *Server {
	return &Server{log: log, arena: a, cache: c, hub: hub}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/battles", s.createBattle)
	r.Post("/v1/battles/{id}/start", s.startBattle)
	r.Post("/v1/battles/{id}/end", s.endBattle)
	r.Post("/v1/battles/{id}/cancel", s.cancelBattle)
	r.Post("/v1/battles/{id}/bets", s.placeBet)
	r.Post("/v1/battles/{id}/gifts", s.sendGift)
	r.Get("/v1/battles/{id}", s.getBattle)
	r.Get("/v1/battles/{id}/odds", s.getOdds)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

func (s *Server) createBattle(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	snap, err := s.arena.CreateBattle(r.Context(), arena.CreateParams{
		HostID:          req.HostID,
		ParticipantA:    arena.Participant{ID: req.ParticipantA.ID, DisplayName: req.ParticipantA.DisplayName, Tier: req.ParticipantA.Tier},
		ParticipantB:    arena.Participant{ID: req.ParticipantB.ID, DisplayName: req.ParticipantB.DisplayName, Tier: req.ParticipantB.Tier},
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBattleResponse(snap))
}

func (s *Server) startBattle(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, s.arena.StartBattle)
}

func (s *Server) endBattle(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, s.arena.EndBattle)
}

func (s *Server) cancelBattle(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, s.arena.CancelBattle)
}

func (s *Server) hostAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, battleID, hostID string) error) {
	var req dto.HostActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if req.HostID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "hostId required"})
		return
	}
	if err := fn(r.Context(), chi.URLParam(r, "id"), req.HostID); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	betID, err := s.arena.PlaceBet(r.Context(), chi.URLParam(r, "id"), req.BettorID, req.ParticipantID, req.AmountCents)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{BetID: betID, Status: "ACCEPTED"})
}

func (s *Server) sendGift(w http.ResponseWriter, r *http.Request) {
	var req dto.SendGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	newScore, err := s.arena.SendGift(r.Context(), chi.URLParam(r, "id"), score.Gift{
		ID:            req.GiftID,
		SenderID:      req.SenderID,
		ParticipantID: req.ParticipantID,
		CostCents:     req.CostCents,
		ScoreValue:    req.ScoreValue,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SendGiftResponse{ParticipantID: req.ParticipantID, NewScore: newScore})
}

// getBattle serve a foto pública da batalha, preferencialmente do cache
func (s *Server) getBattle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.cache != nil {
		var fromCache dto.BattleResponse
		if ok, _ := s.cache.GetSnapshot(r.Context(), id, &fromCache); ok {
			writeJSON(w, http.StatusOK, fromCache)
			return
		}
	}

	snap, err := s.arena.Snapshot(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	resp := toBattleResponse(snap)
	if s.cache != nil {
		_ = s.cache.SetSnapshot(r.Context(), id, resp, 2*time.Second) // leitura barata por 2s
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.arena.Snapshot(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OddsResponse{
		BattleID:       snap.BattleID,
		Odds:           snap.Odds,
		TotalPoolCents: snap.TotalPoolCents,
		BettorCount:    snap.BettorCount,
		Locked:         snap.Locked,
	})
}

// writeErr traduz a taxonomia de erros do domínio para status HTTP
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arena.ErrValidation),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrStakeTooLarge),
		errors.Is(err, pool.ErrUnknownParticipant),
		errors.Is(err, score.ErrUnknownParticipant):
		status = http.StatusBadRequest
	case errors.Is(err, arena.ErrAuthorization):
		status = http.StatusUnauthorized
	case errors.Is(err, arena.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, arena.ErrBattleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arena.ErrState),
		errors.Is(err, pool.ErrDuplicateBet),
		errors.Is(err, arena.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrWindowClosed):
		status = http.StatusGone
	case errors.Is(err, arena.ErrWalletUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("command failed", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

func toBattleResponse(snap arena.Snapshot) dto.BattleResponse {
	parts := make([]dto.ParticipantView, 0, 2)
	for _, p := range snap.Participants {
		parts = append(parts, dto.ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Tier:        p.Tier,
			Score:       snap.Scores[p.ID],
			PoolCents:   snap.SideCents[p.ID],
		})
	}
	return dto.BattleResponse{
		BattleID:         snap.BattleID,
		HostID:           snap.HostID,
		Status:           string(snap.Status),
		Participants:     parts,
		Odds:             snap.Odds,
		TotalPoolCents:   snap.TotalPoolCents,
		BettorCount:      snap.BettorCount,
		Locked:           snap.Locked,
		DurationSeconds:  snap.DurationSeconds,
		TimeRemainingSec: snap.TimeRemainingSec,
		WinnerID:         snap.WinnerID,
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
