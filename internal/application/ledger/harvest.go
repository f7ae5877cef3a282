package ledger

// harvest.go — operaciones de mantenimiento de deudas vivas: cosecha de fees,
// top-up de colateral, takeover de deudas hundidas y retirada de fees.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// Harvest consolida el accrual pendiente de la deuda y reparte las fees ya
// cubiertas por colateral entre lenders y plataforma. Puede llamarlo
// cualquiera; a mismo timestamp la segunda llamada no mueve nada.
func (l *Ledger) Harvest(ctx context.Context, key domain.BorrowingKey) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	d, ok := l.debts[key]
	if !ok {
		return nil, fmt.Errorf("ledger.Harvest: %w", ErrDebtNotFound)
	}
	rate := l.rates.ensure(pairOf(d), now)

	collected, err := l.settle(ctx, d, rate, now)
	if err != nil {
		return nil, fmt.Errorf("ledger.Harvest: %w", err)
	}
	rate.checkpoint(now)

	if collected.Sign() > 0 {
		l.log.Debug("fees harvested", "key", key.Hex(), "collected", collected.String())
	}
	return collected, nil
}

// IncreaseCollateralBalance ingresa colateral adicional (unidades nativas del
// holdToken) en la deuda. El accrual pendiente se consolida primero, de modo
// que el balance nuevo parte de una base al día.
func (l *Ledger) IncreaseCollateralBalance(ctx context.Context, key domain.BorrowingKey, amount *big.Int, deadline int64) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if deadline < now {
		return nil, fmt.Errorf("ledger.IncreaseCollateralBalance: %w", ErrDeadlineExpired)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("ledger.IncreaseCollateralBalance: %w", ErrInvalidAmount)
	}
	d, ok := l.debts[key]
	if !ok {
		return nil, fmt.Errorf("ledger.IncreaseCollateralBalance: %w", ErrDebtNotFound)
	}

	rate := l.rates.ensure(pairOf(d), now)
	if _, err := l.settle(ctx, d, rate, now); err != nil {
		return nil, fmt.Errorf("ledger.IncreaseCollateralBalance: %w", err)
	}
	rate.checkpoint(now)

	d.DailyRateCollateralBalance.Add(d.DailyRateCollateralBalance, domain.Normalize(amount))
	d.UpdatedAt = now
	l.vault.deposit(d.HoldToken, amount)

	l.log.Info("collateral topped up",
		"key", key.Hex(),
		"amount", amount.String(),
		"balance", d.DailyRateCollateralBalance.String(),
	)
	return new(big.Int).Set(d.DailyRateCollateralBalance), nil
}

// TakeOverDebt transfiere una deuda hundida (colateral vivo no-positivo) a un
// borrower nuevo que cubre el descubierto y deposita colateral fresco. Las
// fees impagadas se recuperan del depósito; la deuda se re-indexa bajo la key
// del nuevo borrower y, si éste ya tenía deuda sobre el par, ambas se fusionan.
func (l *Ledger) TakeOverDebt(ctx context.Context, caller common.Address, key domain.BorrowingKey, collateralAmount *big.Int, deadline int64) (domain.BorrowingKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero domain.BorrowingKey
	now := l.clock.Now()
	if deadline < now {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrDeadlineExpired)
	}
	if caller == (common.Address{}) {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrZeroAddress)
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrInvalidAmount)
	}
	d, ok := l.debts[key]
	if !ok {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrDebtNotFound)
	}
	if caller == d.Borrower {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrSelfTakeover)
	}

	balance := l.liveBalance(d, now)
	if balance.Sign() > 0 {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrDebtNotUnderwater)
	}
	shortfall := new(big.Int).Neg(balance)
	deposit := domain.Normalize(collateralAmount)
	if deposit.Cmp(shortfall) <= 0 {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", ErrCollateralAmountTooLow)
	}

	rate := l.rates.ensure(pairOf(d), now)
	if _, err := l.settle(ctx, d, rate, now); err != nil {
		return zero, fmt.Errorf("ledger.TakeOverDebt: %w", err)
	}
	rate.checkpoint(now)

	// El descubierto son fees devengadas que el colateral viejo no cubrió; el
	// depósito del nuevo borrower las salda y van a los buckets.
	loans := l.loans.loans(d.Key)
	if shortfall.Sign() > 0 {
		owners, err := l.loanOwners(ctx, loans)
		if err != nil {
			return zero, fmt.Errorf("ledger.TakeOverDebt: %w", err)
		}
		lenderShare, platformShare := domain.SplitFees(shortfall, l.platformFeesBP)
		l.fees.creditPlatform(d.HoldToken, platformShare)
		l.creditProRata(owners, loans, d.HoldToken, lenderShare)
	}

	oldBorrower := d.Borrower
	newKey := domain.ComputeBorrowingKey(caller, d.SaleToken, d.HoldToken)
	l.loans.removeDebt(key, oldBorrower)
	delete(l.debts, key)

	target := l.debts[newKey]
	if target != nil {
		if _, err := l.settle(ctx, target, rate, now); err != nil {
			return zero, fmt.Errorf("ledger.TakeOverDebt: settling target debt: %w", err)
		}
		target.BorrowedAmount.Add(target.BorrowedAmount, d.BorrowedAmount)
		target.LiquidationBonus.Add(target.LiquidationBonus, d.LiquidationBonus)
		target.DailyRateCollateralBalance.Add(target.DailyRateCollateralBalance, new(big.Int).Sub(deposit, shortfall))
		target.UpdatedAt = now
	} else {
		target = &domain.BorrowingInfo{
			Key:                        newKey,
			Borrower:                   caller,
			SaleToken:                  d.SaleToken,
			HoldToken:                  d.HoldToken,
			BorrowedAmount:             new(big.Int).Set(d.BorrowedAmount),
			LiquidationBonus:           new(big.Int).Set(d.LiquidationBonus),
			DailyRateCollateralBalance: new(big.Int).Sub(deposit, shortfall),
			AccRateSnapshot:            rate.accAt(now),
			CreatedAt:                  now,
		}
		l.debts[newKey] = target
	}
	l.loans.add(newKey, caller, loans)
	l.vault.deposit(d.HoldToken, collateralAmount)

	l.log.Info("debt taken over",
		"old_key", key.Hex(),
		"new_key", newKey.Hex(),
		"new_borrower", caller.Hex(),
		"shortfall", shortfall.String(),
	)
	return newKey, nil
}

// CollectLoansFees retira las fees acumuladas del caller para los tokens
// indicados. Devuelve lo pagado por token en unidades nativas; el resto
// sub-precisión queda acumulado para la siguiente retirada.
func (l *Ledger) CollectLoansFees(ctx context.Context, caller common.Address, tokens []common.Address) (map[common.Address]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[common.Address]*big.Int, len(tokens))
	for _, token := range tokens {
		amount := l.fees.drainLender(caller, token)
		if amount.Sign() <= 0 {
			continue
		}
		if err := l.vault.withdraw(token, amount); err != nil {
			return nil, fmt.Errorf("ledger.CollectLoansFees: %w", err)
		}
		out[token] = amount
	}
	return out, nil
}

// CollectProtocol retira las fees de plataforma. Sólo el owner.
func (l *Ledger) CollectProtocol(ctx context.Context, caller common.Address, tokens []common.Address) (map[common.Address]*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, fmt.Errorf("ledger.CollectProtocol: %w", ErrOnlyOwner)
	}
	out := make(map[common.Address]*big.Int, len(tokens))
	for _, token := range tokens {
		amount := l.fees.drainPlatform(token)
		if amount.Sign() <= 0 {
			continue
		}
		if err := l.vault.withdraw(token, amount); err != nil {
			return nil, fmt.Errorf("ledger.CollectProtocol: %w", err)
		}
		out[token] = amount
	}
	return out, nil
}
