package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairRateView es la proyección de consulta de un pair en el registry.
type PairRateView struct {
	Pair             PairKey
	CurrentDailyRate uint64
	EntranceFeeBP    uint64
	TotalBorrowed    *big.Int
}

// FeeBalance es un bucket de fees pendiente de retirar (precisión 1e18).
type FeeBalance struct {
	Holder common.Address
	Token  common.Address
	Amount *big.Int
}

// VaultBalance es el balance custodiado de un token en la vault.
type VaultBalance struct {
	Token  common.Address
	Amount *big.Int
}

// LedgerSnapshot es la foto del estado contable tras una operación: lo que
// persiste el storage y lo que pinta el reporter. Proyección pura, sin
// referencias al estado vivo del engine.
type LedgerSnapshot struct {
	Timestamp int64
	Debts     []DebtView
	Rates     []PairRateView
	Fees      []FeeBalance
	Platform  []FeeBalance
	Vault     []VaultBalance
}
