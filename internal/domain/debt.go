package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LoanInfo es el crédito de una posición de liquidez concreta dentro de una
// deuda: cuánta liquidez de ese NFT respalda la deuda. Una deuda puede estar
// respaldada por varias posiciones y una posición puede respaldar varias deudas.
type LoanInfo struct {
	// TokenID es el id del NFT de la posición del lender.
	TokenID uint64
	// Liquidity es la liquidez de esa posición comprometida en esta deuda.
	Liquidity *big.Int
}

// Clone devuelve una copia profunda del loan.
func (l LoanInfo) Clone() LoanInfo {
	return LoanInfo{TokenID: l.TokenID, Liquidity: new(big.Int).Set(l.Liquidity)}
}

// BorrowingInfo es el estado contable de una deuda viva. Los importes están en
// unidades nativas del holdToken salvo DailyRateCollateralBalance, que se lleva
// a precisión 1e18 (CollateralPrecision) y puede ser negativo: cuando el
// balance vivo (colateral menos accrual) llega a cero o menos, la deuda es
// liquidable por cualquiera.
type BorrowingInfo struct {
	Key       BorrowingKey
	Borrower  common.Address
	SaleToken common.Address
	HoldToken common.Address

	// BorrowedAmount es el principal en holdToken extraído de la liquidez.
	BorrowedAmount *big.Int
	// LiquidationBonus es el incentivo reservado para quien liquide la deuda.
	LiquidationBonus *big.Int
	// DailyRateCollateralBalance es el colateral depositado menos las fees ya
	// cosechadas, a precisión 1e18. Decrece de forma implícita con el tiempo
	// (el decay vivo se calcula contra el acumulador del pair, no se escribe
	// cada segundo).
	DailyRateCollateralBalance *big.Int
	// AccRateSnapshot es el valor del acumulador bps·segundo del pair en el
	// último checkpoint de esta deuda (borrow, harvest, top-up, takeover).
	AccRateSnapshot *big.Int

	CreatedAt int64
	UpdatedAt int64
}

// DebtView es la proyección de consulta de una deuda: balance vivo ya
// descontado el accrual y vida estimada restante en segundos.
type DebtView struct {
	Info              BorrowingInfo
	Loans             []LoanInfo
	CollateralBalance *big.Int // 1e18, firmado
	EstimatedLifeTime int64    // segundos; 0 si ya es liquidable
}

// Liquidatable indica si la deuda puede liquidarla cualquiera.
func (d DebtView) Liquidatable() bool {
	return d.CollateralBalance.Sign() <= 0
}

// TotalLoanLiquidity suma la liquidez de todos los loans de la vista.
func (d DebtView) TotalLoanLiquidity() *big.Int {
	total := new(big.Int)
	for _, l := range d.Loans {
		total.Add(total, l.Liquidity)
	}
	return total
}
