package arena

import "errors"

var (
	ErrBattleNotFound    = errors.New("battle not found")
	ErrState             = errors.New("operation not valid in current battle state")
	ErrAuthorization     = errors.New("caller is not the battle host")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrWalletUnavailable cobre timeout/indisponibilidade do wallet-service.
	// O comando falha fechado: nenhum estado da batalha é alterado.
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrConcurrencyConflict indica mailbox saturado após retries internos.
	ErrConcurrencyConflict = errors.New("battle busy, try again")
)
