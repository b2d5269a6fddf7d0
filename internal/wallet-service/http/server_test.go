package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/wallet-service/dto"
	"github.com/radieske/battle-arena-poc/internal/wallet-service/repo"
)

// memRepo é uma carteira em memória com a mesma idempotência por
// external_ref do repositório Postgres.
type memRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	applied  map[string]int64 // external_ref -> saldo após a operação
}

func newMemRepo() *memRepo {
	return &memRepo{balances: make(map[string]int64), applied: make(map[string]int64)}
}

func (m *memRepo) GetOrCreateWallet(_ context.Context, userID string) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Debit(_ context.Context, userID string, amount int64, externalRef string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.applied[externalRef]; ok {
		return bal, nil
	}
	if m.balances[userID] < amount {
		return 0, repo.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	m.applied[externalRef] = m.balances[userID]
	return m.balances[userID], nil
}

func (m *memRepo) Credit(_ context.Context, userID string, amount int64, externalRef string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.applied[externalRef]; ok {
		return bal, nil
	}
	m.balances[userID] += amount
	m.applied[externalRef] = m.balances[userID]
	return m.balances[userID], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memRepo) {
	t.Helper()
	r := newMemRepo()
	srv := httptest.NewServer(NewServer(zap.NewNop(), r).Router())
	t.Cleanup(srv.Close)
	return srv, r
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestDepositThenGet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/wallet/deposit", dto.DepositRequest{UserID: "u1", AmountCents: 5_000})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d", resp.StatusCode)
	}
	var w dto.WalletResponse
	_ = json.NewDecoder(resp.Body).Decode(&w)
	if w.BalanceCents != 5_000 {
		t.Fatalf("balance = %d, want 5000", w.BalanceCents)
	}

	getResp, err := http.Get(srv.URL + "/wallet?userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	var got dto.WalletResponse
	_ = json.NewDecoder(getResp.Body).Decode(&got)
	if got.BalanceCents != 5_000 {
		t.Fatalf("balance = %d, want 5000", got.BalanceCents)
	}
}

func TestDebitInsufficientReturns402(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/wallet/debit", dto.DebitRequest{UserID: "u1", AmountCents: 1_000, ExternalRef: "stake:b1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
}

func TestDebitIdempotentByExternalRef(t *testing.T) {
	srv, r := newTestServer(t)
	r.balances["u1"] = 10_000

	for i := 0; i < 3; i++ {
		resp := post(t, srv.URL+"/wallet/debit", dto.DebitRequest{UserID: "u1", AmountCents: 1_000, ExternalRef: "stake:b1"})
		var out dto.BalanceResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, resp.StatusCode)
		}
		if out.BalanceCents != 9_000 {
			t.Fatalf("attempt %d: balance = %d, want 9000", i, out.BalanceCents)
		}
	}
}

func TestCreditIdempotentByExternalRef(t *testing.T) {
	srv, r := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := post(t, srv.URL+"/wallet/credit", dto.CreditRequest{UserID: "u1", AmountCents: 2_500, ExternalRef: "payout:b1"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, resp.StatusCode)
		}
	}
	if r.balances["u1"] != 2_500 {
		t.Fatalf("balance = %d, want 2500 after replays", r.balances["u1"])
	}
}

func TestRejectsMalformedPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		url  string
		body any
	}{
		{"missing user", srv.URL + "/wallet/debit", dto.DebitRequest{AmountCents: 100, ExternalRef: "x"}},
		{"zero amount", srv.URL + "/wallet/debit", dto.DebitRequest{UserID: "u1", ExternalRef: "x"}},
		{"missing ref", srv.URL + "/wallet/credit", dto.CreditRequest{UserID: "u1", AmountCents: 100}},
		{"negative deposit", srv.URL + "/wallet/deposit", dto.DepositRequest{UserID: "u1", AmountCents: -5}},
	}
	for _, tc := range cases {
		resp := post(t, tc.url, tc.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}
