package ledger

import "errors"

// Taxonomía de errores del ledger. Todos se devuelven síncronamente al caller
// como resultado de la operación: no hay retries en background ni recuperación
// silenciosa — un invariante roto aborta, nunca aproxima.
var (
	// Validación de input (el caller puede corregir y reintentar).
	ErrDeadlineExpired             = errors.New("ledger: transaction too old")
	ErrDailyRateTooHigh            = errors.New("ledger: current daily rate exceeds caller ceiling")
	ErrTooLittleReceived           = errors.New("ledger: amount out below caller minimum")
	ErrExcessiveMarginDeposit      = errors.New("ledger: margin deposit exceeds caller maximum")
	ErrSwapCallNotWhitelisted      = errors.New("ledger: external swap target/selector not whitelisted")
	ErrPositionsFromDifferentPools = errors.New("ledger: loans aggregate positions from different pools")
	ErrTooLittleBorrowedLiquidity  = errors.New("ledger: loan liquidity below protocol minimum")
	ErrInvalidDailyRate            = errors.New("ledger: daily rate out of bounds or unchanged")
	ErrInvalidEntranceFee          = errors.New("ledger: entrance fee out of bounds")
	ErrInvalidSettings             = errors.New("ledger: malformed settings update")
	ErrZeroAddress                 = errors.New("ledger: zero address")
	ErrInvalidAmount               = errors.New("ledger: amount must be positive")

	// Autorización.
	ErrOnlyOwner                 = errors.New("ledger: caller is not the owner")
	ErrOnlyOperator              = errors.New("ledger: caller is not the operator")
	ErrOnlyBorrowerAllowed       = errors.New("ledger: caller is not the borrower")
	ErrNotAuthorizedForEmergency = errors.New("ledger: caller not lender, borrower nor owner")

	// Recursos insuficientes.
	ErrInsufficientLiquidity   = errors.New("ledger: requested liquidity exceeds position's available")
	ErrInsufficientHoldBalance = errors.New("ledger: debt proceeds cannot cover liquidity restoration")
	ErrCollateralAmountTooLow  = errors.New("ledger: collateral does not cover the shortfall")
	ErrVaultInsufficientFunds  = errors.New("ledger: vault balance below requested transfer")

	// Estado de la deuda.
	ErrDebtNotFound      = errors.New("ledger: unknown borrowing key")
	ErrNotLiquidatable   = errors.New("ledger: collateral balance still positive")
	ErrDebtNotUnderwater = errors.New("ledger: debt is not underwater")
	ErrSelfTakeover      = errors.New("ledger: cannot take over own debt")
)
