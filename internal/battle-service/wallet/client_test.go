package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/radieske/battle-arena-poc/internal/battle-service/arena"
	walletdto "github.com/radieske/battle-arena-poc/internal/battle-service/wallet/dto"
)

func TestDebitOK(t *testing.T) {
	var got walletdto.DebitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/debit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(walletdto.BalanceResponse{UserID: got.UserID, BalanceCents: 500})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Debit(context.Background(), "u1", 1_000, "stake:bet-1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got.UserID != "u1" || got.AmountCents != 1_000 || got.ExternalRef != "stake:bet-1" {
		t.Fatalf("request = %+v", got)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Debit(context.Background(), "u1", 1_000, "stake:bet-1"); !errors.Is(err, arena.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestDebitServerErrorFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Debit(context.Background(), "u1", 1_000, "stake:bet-1")
	if err == nil {
		t.Fatal("want error on http 500")
	}
	if errors.Is(err, arena.ErrInsufficientFunds) {
		t.Fatal("500 must not map to insufficient funds")
	}
}

func TestDebitTimeoutFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.HTTP.Timeout = 50 * time.Millisecond
	if err := c.Debit(context.Background(), "u1", 1_000, "stake:bet-1"); err == nil {
		t.Fatal("want error on timeout")
	}
}

func TestCreditReturnsNewBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/credit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(walletdto.BalanceResponse{UserID: "u1", BalanceCents: 7_500})
	}))
	defer srv.Close()

	c := New(srv.URL)
	balance, err := c.Credit(context.Background(), "u1", 2_500, "payout:bet-1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 7_500 {
		t.Fatalf("balance = %d, want 7500", balance)
	}
}
