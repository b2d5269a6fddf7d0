package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
	walletdto "github.com/radieske/battle-arena-poc/internal/battle-service/wallet/dto"
)

// Client fala com o wallet-service. O timeout curto é deliberado: o débito
// acontece dentro do turno do ator da batalha e precisa falhar fechado rápido.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Debit debita o valor do usuário. Saldo insuficiente (HTTP 402) vira
// arena.ErrInsufficientFunds; qualquer outra falha (incluindo timeout) sobe
// como erro técnico e o comando da batalha falha sem mutação de estado.
func (c *Client) Debit(ctx context.Context, userID string, cents int64, externalRef string) error {
	body, _ := json.Marshal(walletdto.DebitRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/debit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("wallet debit: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusPaymentRequired {
		return arena.ErrInsufficientFunds
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("wallet debit http %d", res.StatusCode)
	}
	return nil
}

// Credit credita o valor ao usuário (payout/reembolso), idempotente por
// externalRef do lado do wallet-service.
func (c *Client) Credit(ctx context.Context, userID string, cents int64, externalRef string) (int64, error) {
	body, _ := json.Marshal(walletdto.CreditRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/credit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wallet credit: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("wallet credit http %d", res.StatusCode)
	}
	var out walletdto.BalanceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.BalanceCents, nil
}
