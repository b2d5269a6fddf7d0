package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/radieske/battle-arena-poc/internal/shared/config"
	"github.com/radieske/battle-arena-poc/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	arenaProxy := rp(cfg.ArenaURL)
	walletProxy := rp(cfg.WalletURL)

	mux := http.NewServeMux()

	// batalhas (ex.: /api/arena/v1/battles -> battle-service)
	mux.Handle("/api/arena/", http.StripPrefix("/api/arena", arenaProxy))

	// wallet (ex.: /api/wallet/wallet/deposit -> wallet-service)
	mux.Handle("/api/wallet/", http.StripPrefix("/api/wallet", walletProxy))

	// O WS do battle-service também passa pelo proxy (upgrade é repassado)
	mux.Handle("/ws", arenaProxy)

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
