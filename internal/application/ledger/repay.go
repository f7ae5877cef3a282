package ledger

// repay.go — cierre de deudas por sus tres vías: repago voluntario del
// borrower, liquidación por cualquiera cuando el colateral vivo llegó a cero,
// y cierre de emergencia de un lender que recupera su crédito en holdToken
// sin restaurar la liquidez.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// RepayParams describe un cierre. Con IsEmergency el cierre libera UN loan por
// llamada; sin él la deuda entera se cierra restaurando la liquidez de todas
// las posiciones.
type RepayParams struct {
	Caller common.Address
	Key    domain.BorrowingKey

	IsEmergency bool
	// FlashRoutes financia la recompra del saleToken con flash loans en lugar
	// de un swap exact-output directo contra el pool.
	FlashRoutes *domain.FlashLoanRoutes
	// MinHoldTokenOut es el mínimo de slippage del caller sobre el holdToken
	// que recibe del cierre (sobrante + colateral para el borrower, bonus para
	// el liquidador). MinSaleTokenOut protege el residuo de saleToken: la
	// recompra exact-output no deja residuo, así que un mínimo positivo aborta.
	MinHoldTokenOut *big.Int
	MinSaleTokenOut *big.Int
	Deadline        int64
}

// RepayResult resume el cierre: lo pagado al borrower, el bonus entregado y
// las fees pendientes recuperadas de los proceeds.
type RepayResult struct {
	HoldTokenOut  *big.Int
	BonusPaid     *big.Int
	FeesRecovered *big.Int // 1e18
	Closed        bool
	// RemovedTokenID es la posición liberada en un cierre de emergencia.
	RemovedTokenID uint64
}

// Repay cierra la deuda. El borrower puede cerrar siempre; cualquier otro
// caller sólo cuando el colateral vivo es no-positivo, llevándose entonces el
// liquidation bonus. La restauración de liquidez se financia con el principal
// custodiado; si no alcanza se consume del bonus, y si tampoco alcanza la
// operación aborta sin mutar nada.
func (l *Ledger) Repay(ctx context.Context, params RepayParams) (*RepayResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if params.Deadline < now {
		return nil, fmt.Errorf("ledger.Repay: %w", ErrDeadlineExpired)
	}
	d, ok := l.debts[params.Key]
	if !ok {
		return nil, fmt.Errorf("ledger.Repay: %w", ErrDebtNotFound)
	}

	if params.IsEmergency {
		return l.emergencyClose(ctx, d, params, now)
	}

	liquidating := params.Caller != d.Borrower
	balance := l.liveBalance(d, now)
	if liquidating && balance.Sign() > 0 {
		return nil, fmt.Errorf("ledger.Repay: %w", ErrOnlyBorrowerAllowed)
	}

	refund := new(big.Int)
	unpaid := new(big.Int)
	if balance.Sign() > 0 {
		refund.Set(balance)
	} else {
		unpaid.Neg(balance)
	}
	refundNative := domain.Denormalize(refund)
	unpaidNative := domain.DenormalizeRoundUp(unpaid)

	loans := l.loans.loans(d.Key)
	pos, err := l.positions.Position(ctx, loans[0].TokenID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: loading position %d: %w", loans[0].TokenID, err)
	}
	feeTier := pos.FeeTier

	needHold, needSale, err := l.restorationNeeds(ctx, d, loans)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	// Presupuesto contra el quote exact-output, premium del flash loan
	// incluido: el presupuesto de validación debe ver el coste real de la ruta
	// o un fallo tardío dejaría estado a medias.
	holdForSale := new(big.Int)
	if needSale.Sign() > 0 {
		saleToBuy := new(big.Int).Set(needSale)
		if params.FlashRoutes != nil && len(params.FlashRoutes.Routes) > 0 {
			premium, err := l.flash.QuotePremium(ctx, *params.FlashRoutes, d.SaleToken, needSale)
			if err != nil {
				return nil, fmt.Errorf("ledger.Repay: quoting flash premium: %w", err)
			}
			saleToBuy.Add(saleToBuy, premium)
		}
		holdForSale, err = l.swapper.QuoteExactOutput(ctx, d.HoldToken, d.SaleToken, feeTier, saleToBuy)
		if err != nil {
			return nil, fmt.Errorf("ledger.Repay: quoting buyback: %w", err)
		}
	}
	cost := new(big.Int).Add(needHold, holdForSale)
	expectedLeftover, expectedBonus, _, err := splitBudget(d.BorrowedAmount, d.LiquidationBonus, cost, unpaidNative)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	if params.MinSaleTokenOut != nil && params.MinSaleTokenOut.Sign() > 0 {
		return nil, fmt.Errorf("ledger.Repay: %w", ErrTooLittleReceived)
	}
	if params.MinHoldTokenOut != nil {
		expectedOut := new(big.Int)
		if liquidating {
			expectedOut.Set(expectedBonus)
		} else {
			expectedOut.Add(expectedLeftover, refundNative)
			expectedOut.Add(expectedOut, expectedBonus)
		}
		if expectedOut.Cmp(params.MinHoldTokenOut) < 0 {
			return nil, fmt.Errorf("ledger.Repay: %w", ErrTooLittleReceived)
		}
	}

	// Commit.
	if _, err := l.settle(ctx, d, l.rates.ensure(pairOf(d), now), now); err != nil {
		return nil, fmt.Errorf("ledger.Repay: settling: %w", err)
	}

	spent, err := l.restoreLiquidity(ctx, d, loans, feeTier, needSale, params.FlashRoutes)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}
	cost = new(big.Int).Add(needHold, spent)
	leftover, bonus, recovered, err := splitBudget(d.BorrowedAmount, d.LiquidationBonus, cost, unpaidNative)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	recovered1e18 := domain.Normalize(recovered)
	if recovered1e18.Cmp(unpaid) > 0 {
		recovered1e18.Set(unpaid)
	}
	if recovered1e18.Sign() > 0 {
		owners, err := l.loanOwners(ctx, loans)
		if err != nil {
			return nil, fmt.Errorf("ledger.Repay: %w", err)
		}
		lenderShare, platformShare := domain.SplitFees(recovered1e18, l.platformFeesBP)
		l.fees.creditPlatform(d.HoldToken, platformShare)
		l.creditProRata(owners, loans, d.HoldToken, lenderShare)
	}

	borrowerOut := new(big.Int).Add(leftover, refundNative)
	bonusPaid := new(big.Int).Set(bonus)
	outflow := new(big.Int).Add(cost, borrowerOut)
	outflow.Add(outflow, bonusPaid)
	if err := l.vault.withdraw(d.HoldToken, outflow); err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	principal := new(big.Int).Set(d.BorrowedAmount)
	rate := l.rates.ensure(pairOf(d), now)
	rate.adjustTotalBorrowed(new(big.Int).Neg(principal))
	rate.checkpoint(now)
	l.loans.removeDebt(d.Key, d.Borrower)
	delete(l.debts, d.Key)

	l.log.Info("debt closed",
		"key", d.Key.Hex(),
		"caller", params.Caller.Hex(),
		"liquidation", liquidating,
		"borrower_out", borrowerOut.String(),
		"bonus", bonusPaid.String(),
	)

	if !liquidating {
		borrowerOut.Add(borrowerOut, bonusPaid)
	}
	return &RepayResult{
		HoldTokenOut:  borrowerOut,
		BonusPaid:     bonusPaid,
		FeesRecovered: recovered1e18,
		Closed:        true,
	}, nil
}

// restorationNeeds cotiza, sin mutar estado, los importes de holdToken y
// saleToken necesarios para devolver a cada posición su liquidez.
func (l *Ledger) restorationNeeds(ctx context.Context, d *domain.BorrowingInfo, loans []domain.LoanInfo) (needHold, needSale *big.Int, err error) {
	needHold = new(big.Int)
	needSale = new(big.Int)
	for _, loan := range loans {
		pos, err := l.positions.Position(ctx, loan.TokenID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading position %d: %w", loan.TokenID, err)
		}
		amount0, amount1, err := l.positions.AmountsForLiquidity(ctx, loan.TokenID, loan.Liquidity)
		if err != nil {
			return nil, nil, fmt.Errorf("quoting position %d: %w", loan.TokenID, err)
		}
		if pos.Token0 == d.HoldToken {
			needHold.Add(needHold, amount0)
			needSale.Add(needSale, amount1)
		} else {
			needHold.Add(needHold, amount1)
			needSale.Add(needSale, amount0)
		}
	}
	return needHold, needSale, nil
}

// restoreLiquidity recompra needSale y devuelve la liquidez a cada posición.
// Devuelve el holdToken consumido por la recompra. Con rutas flash la recompra
// se financia dentro del callback y se repaga con premium; un error dentro del
// callback deshace el préstamo entero.
func (l *Ledger) restoreLiquidity(ctx context.Context, d *domain.BorrowingInfo, loans []domain.LoanInfo, feeTier uint32, needSale *big.Int, routes *domain.FlashLoanRoutes) (*big.Int, error) {
	increaseAll := func() error {
		for _, loan := range loans {
			if _, _, err := l.positions.IncreaseLiquidity(ctx, loan.TokenID, loan.Liquidity); err != nil {
				return fmt.Errorf("restoring liquidity of %d: %w", loan.TokenID, err)
			}
		}
		return nil
	}

	if needSale.Sign() <= 0 {
		return new(big.Int), increaseAll()
	}

	if routes == nil || len(routes.Routes) == 0 {
		spent, err := l.swapper.SwapExactOutput(ctx, d.HoldToken, d.SaleToken, feeTier, needSale)
		if err != nil {
			return nil, fmt.Errorf("buying back sale token: %w", err)
		}
		return spent, increaseAll()
	}

	spent := new(big.Int)
	err := l.flash.Supply(ctx, *routes, d.SaleToken, needSale, func(premium *big.Int) error {
		if err := increaseAll(); err != nil {
			return err
		}
		owed := new(big.Int).Add(needSale, premium)
		in, err := l.swapper.SwapExactOutput(ctx, d.HoldToken, d.SaleToken, feeTier, owed)
		if err != nil {
			return fmt.Errorf("repaying flash loan: %w", err)
		}
		spent.Set(in)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("flash-routed buyback: %w", err)
	}
	return spent, nil
}

// splitBudget reparte el principal y el bonus de la deuda entre el coste de
// restauración, la recuperación de fees impagadas y el sobrante del borrower.
// Falla si ni principal ni bonus cubren el coste.
func splitBudget(principal, bonus, cost, unpaidNative *big.Int) (leftover, bonusLeft, recovered *big.Int, err error) {
	leftover = new(big.Int).Sub(principal, cost)
	bonusLeft = new(big.Int).Set(bonus)
	if leftover.Sign() < 0 {
		bonusLeft.Add(bonusLeft, leftover)
		leftover.SetInt64(0)
		if bonusLeft.Sign() < 0 {
			return nil, nil, nil, ErrInsufficientHoldBalance
		}
	}

	recovered = new(big.Int)
	remaining := new(big.Int).Set(unpaidNative)
	take := func(from *big.Int) {
		if remaining.Sign() <= 0 || from.Sign() <= 0 {
			return
		}
		amount := new(big.Int).Set(remaining)
		if amount.Cmp(from) > 0 {
			amount.Set(from)
		}
		from.Sub(from, amount)
		remaining.Sub(remaining, amount)
		recovered.Add(recovered, amount)
	}
	take(leftover)
	take(bonusLeft)
	return leftover, bonusLeft, recovered, nil
}

// emergencyClose libera UN loan de la deuda: el dueño de la posición recibe su
// parte proporcional de principal y bonus en holdToken y renuncia a la
// restauración de su liquidez. Autorizados: un lender de la deuda, el borrower
// o el owner del protocolo, y sólo con el colateral vivo agotado: una deuda
// sana se cierra por la vía normal, nunca por ésta.
func (l *Ledger) emergencyClose(ctx context.Context, d *domain.BorrowingInfo, params RepayParams, now int64) (*RepayResult, error) {
	loans := l.loans.loans(d.Key)
	owners, err := l.loanOwners(ctx, loans)
	if err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	idx := -1
	for i, owner := range owners {
		if owner == params.Caller {
			idx = i
			break
		}
	}
	if idx < 0 {
		if params.Caller != d.Borrower && params.Caller != l.owner {
			return nil, fmt.Errorf("ledger.Repay: %w", ErrNotAuthorizedForEmergency)
		}
		idx = 0
	}
	if l.liveBalance(d, now).Sign() > 0 {
		return nil, fmt.Errorf("ledger.Repay: %w", ErrNotLiquidatable)
	}
	target := loans[idx]

	rate := l.rates.ensure(pairOf(d), now)
	if _, err := l.settle(ctx, d, rate, now); err != nil {
		return nil, fmt.Errorf("ledger.Repay: settling: %w", err)
	}

	totalLiq := l.loans.totalLiquidity(d.Key)
	principalShare := new(big.Int)
	bonusShare := new(big.Int)
	if len(loans) == 1 {
		principalShare.Set(d.BorrowedAmount)
		bonusShare.Set(d.LiquidationBonus)
	} else {
		principalShare.Mul(d.BorrowedAmount, target.Liquidity)
		principalShare.Quo(principalShare, totalLiq)
		bonusShare.Mul(d.LiquidationBonus, target.Liquidity)
		bonusShare.Quo(bonusShare, totalLiq)
	}

	payout := new(big.Int).Add(principalShare, bonusShare)
	if err := l.vault.withdraw(d.HoldToken, payout); err != nil {
		return nil, fmt.Errorf("ledger.Repay: %w", err)
	}

	l.loans.removeLoan(d.Key, target.TokenID)
	d.BorrowedAmount.Sub(d.BorrowedAmount, principalShare)
	d.LiquidationBonus.Sub(d.LiquidationBonus, bonusShare)
	d.UpdatedAt = now
	rate.adjustTotalBorrowed(new(big.Int).Neg(principalShare))
	rate.checkpoint(now)

	result := &RepayResult{
		HoldTokenOut:   payout,
		BonusPaid:      bonusShare,
		FeesRecovered:  new(big.Int),
		RemovedTokenID: target.TokenID,
	}

	// El gate de colateral agotado garantiza que tras el settle no queda
	// balance positivo que devolver: el último cierre sólo retira índices.
	if len(loans) == 1 {
		l.loans.removeDebt(d.Key, d.Borrower)
		delete(l.debts, d.Key)
		result.Closed = true
	}

	l.log.Info("emergency loan closed",
		"key", d.Key.Hex(),
		"caller", params.Caller.Hex(),
		"token_id", target.TokenID,
		"payout", payout.String(),
		"debt_closed", result.Closed,
	)
	return result, nil
}

func pairOf(d *domain.BorrowingInfo) domain.PairKey {
	return domain.PairKey{SaleToken: d.SaleToken, HoldToken: d.HoldToken}
}
