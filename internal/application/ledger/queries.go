package ledger

// queries.go — superficie de consulta del ledger. Todas las lecturas son
// concurrentes bajo RLock y devuelven proyecciones: el accrual vivo se calcula
// contra el acumulador del par sin escribir nada.

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// GetHoldTokenInfo devuelve rate, entrance fee (centinela ya resuelto) y total
// prestado del par dirigido.
func (l *Ledger) GetHoldTokenInfo(saleToken, holdToken common.Address) domain.PairRateView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pair := domain.PairKey{SaleToken: saleToken, HoldToken: holdToken}
	return l.rates.view(pair, l.clock.Now())
}

// CheckDailyRateCollateral devuelve el colateral vivo (1e18, firmado) y la
// vida estimada en segundos de la deuda al rate actual.
func (l *Ledger) CheckDailyRateCollateral(key domain.BorrowingKey) (*big.Int, int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.debts[key]
	if !ok {
		return nil, 0, fmt.Errorf("ledger.CheckDailyRateCollateral: %w", ErrDebtNotFound)
	}
	now := l.clock.Now()
	balance := l.liveBalance(d, now)
	rateBP := l.rates.view(pairOf(d), now).CurrentDailyRate
	return balance, domain.EstimatedLifetimeSeconds(balance, d.BorrowedAmount, rateBP), nil
}

// GetBorrowerDebtsCount devuelve cuántas deudas vivas tiene el borrower.
func (l *Ledger) GetBorrowerDebtsCount(borrower common.Address) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.loans.keysForBorrower(borrower))
}

// GetBorrowerDebtsInfo devuelve las deudas vivas del borrower con su accrual
// al día, ordenadas por key.
func (l *Ledger) GetBorrowerDebtsInfo(borrower common.Address) []domain.DebtView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debtViews(l.loans.keysForBorrower(borrower))
}

// GetBorrowingKeysForBorrower devuelve las keys de deuda del borrower, ordenadas.
func (l *Ledger) GetBorrowingKeysForBorrower(borrower common.Address) []domain.BorrowingKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedKeys(l.loans.keysForBorrower(borrower))
}

// GetBorrowingKeysForTokenId devuelve las keys de las deudas que drenan de la
// posición, ordenadas.
func (l *Ledger) GetBorrowingKeysForTokenId(tokenID uint64) []domain.BorrowingKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedKeys(l.loans.keysForToken(tokenID))
}

// GetLenderCreditsCount devuelve cuántas deudas respaldan la posición.
func (l *Ledger) GetLenderCreditsCount(tokenID uint64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.loans.keysForToken(tokenID))
}

// GetLenderCreditsInfo devuelve las deudas respaldadas por la posición.
func (l *Ledger) GetLenderCreditsInfo(tokenID uint64) []domain.DebtView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debtViews(l.loans.keysForToken(tokenID))
}

// GetLoansInfo devuelve los loans vivos de una deuda.
func (l *Ledger) GetLoansInfo(key domain.BorrowingKey) []domain.LoanInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loans.loans(key)
}

// GetFeesInfo devuelve los buckets de fees del holder para los tokens pedidos
// (1e18).
func (l *Ledger) GetFeesInfo(holder common.Address, tokens []common.Address) []domain.FeeBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.FeeBalance, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, domain.FeeBalance{
			Holder: holder,
			Token:  token,
			Amount: l.fees.lenderBalance(holder, token),
		})
	}
	return out
}

// GetPlatformFeesInfo devuelve los buckets de plataforma para los tokens pedidos.
func (l *Ledger) GetPlatformFeesInfo(tokens []common.Address) []domain.FeeBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.FeeBalance, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, domain.FeeBalance{
			Token:  token,
			Amount: l.fees.platformBalance(token),
		})
	}
	return out
}

// GetLiquidationBonus calcula el bonus que exigiría un borrow de borrowedAmount
// del token con times loans.
func (l *Ledger) GetLiquidationBonus(token common.Address, borrowedAmount *big.Int, times int) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.liquidationBonus(token, borrowedAmount, times)
}

// GetBalance devuelve el balance custodiado de un token en la vault.
func (l *Ledger) GetBalance(token common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vault.balance(token)
}

// Snapshot devuelve la foto completa del estado contable: deudas con accrual
// al día, rates por par, buckets de fees y balances de la vault. Es lo que
// persiste el storage y pinta el reporter tras cada operación.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.clock.Now()
	keys := make([]domain.BorrowingKey, 0, len(l.debts))
	for key := range l.debts {
		keys = append(keys, key)
	}
	snap := domain.LedgerSnapshot{
		Timestamp: now,
		Debts:     l.debtViews(keys),
		Fees:      l.fees.snapshotLenders(),
		Platform:  l.fees.snapshotPlatform(),
		Vault:     l.vault.snapshot(),
	}

	pairs := make([]domain.PairKey, 0, len(l.rates.pairs))
	for pair := range l.rates.pairs {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].SaleToken != pairs[j].SaleToken {
			return pairs[i].SaleToken.Hex() < pairs[j].SaleToken.Hex()
		}
		return pairs[i].HoldToken.Hex() < pairs[j].HoldToken.Hex()
	})
	for _, pair := range pairs {
		snap.Rates = append(snap.Rates, l.rates.view(pair, now))
	}
	return snap
}

// debtViews proyecta las deudas de las keys dadas, ordenadas por key.
func (l *Ledger) debtViews(keys []domain.BorrowingKey) []domain.DebtView {
	now := l.clock.Now()
	out := make([]domain.DebtView, 0, len(keys))
	for _, key := range sortedKeys(keys) {
		d, ok := l.debts[key]
		if !ok {
			continue
		}
		balance := l.liveBalance(d, now)
		rateBP := l.rates.view(pairOf(d), now).CurrentDailyRate
		out = append(out, domain.DebtView{
			Info: domain.BorrowingInfo{
				Key:                        d.Key,
				Borrower:                   d.Borrower,
				SaleToken:                  d.SaleToken,
				HoldToken:                  d.HoldToken,
				BorrowedAmount:             new(big.Int).Set(d.BorrowedAmount),
				LiquidationBonus:           new(big.Int).Set(d.LiquidationBonus),
				DailyRateCollateralBalance: new(big.Int).Set(d.DailyRateCollateralBalance),
				AccRateSnapshot:            new(big.Int).Set(d.AccRateSnapshot),
				CreatedAt:                  d.CreatedAt,
				UpdatedAt:                  d.UpdatedAt,
			},
			Loans:             l.loans.loans(key),
			CollateralBalance: balance,
			EstimatedLifeTime: domain.EstimatedLifetimeSeconds(balance, d.BorrowedAmount, rateBP),
		})
	}
	return out
}

func sortedKeys(keys []domain.BorrowingKey) []domain.BorrowingKey {
	out := make([]domain.BorrowingKey, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}
