package ledger

// engine.go — el BorrowingLedger: la máquina de estados contable del protocolo.
//
// Disciplina de mutación: cada operación valida TODO contra quotes read-only
// antes de tocar adaptadores o estado propio. La fase de commit (swaps,
// liquidez, vault, buckets) sólo arranca cuando ninguna validación puede ya
// fallar, de modo que un error deja el ledger exactamente como estaba.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
	"github.com/alejandrodnm/levsim/internal/ports"
)

// swapCallKey indexa la whitelist de swaps externos por (target, selector):
// aprobar un target no aprueba todos sus métodos.
type swapCallKey struct {
	target   common.Address
	selector [4]byte
}

// Ledger es el engine contable. Single-writer: toda operación mutante toma el
// lock en exclusiva; las queries comparten el RLock.
type Ledger struct {
	mu  sync.RWMutex
	log *slog.Logger

	clock     ports.Clock
	positions ports.PositionManager
	swapper   ports.Swapper
	external  ports.ExternalSwapper
	flash     ports.FlashLoanProvider

	owner    common.Address
	operator common.Address

	platformFeesBP    uint64
	defaultLiqBonusBP uint64
	bonusOverrides    map[common.Address]domain.TokenBonus

	flashLoanAggregator common.Address
	lightQuoter         common.Address

	whitelist map[swapCallKey]struct{}

	rates *rateRegistry
	loans *loanBook
	debts map[domain.BorrowingKey]*domain.BorrowingInfo
	fees  *feeBank
	vault *vault
}

// New construye el ledger con el owner como operator inicial.
func New(
	log *slog.Logger,
	clock ports.Clock,
	positions ports.PositionManager,
	swapper ports.Swapper,
	external ports.ExternalSwapper,
	flash ports.FlashLoanProvider,
	owner common.Address,
) (*Ledger, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("ledger.New: %w", ErrZeroAddress)
	}
	return &Ledger{
		log:               log.With("component", "ledger"),
		clock:             clock,
		positions:         positions,
		swapper:           swapper,
		external:          external,
		flash:             flash,
		owner:             owner,
		operator:          owner,
		platformFeesBP:    domain.DefaultPlatformFeesBP,
		defaultLiqBonusBP: domain.DefaultLiquidationBonusBP,
		bonusOverrides:    make(map[common.Address]domain.TokenBonus),
		whitelist:         make(map[swapCallKey]struct{}),
		rates:             newRateRegistry(),
		loans:             newLoanBook(),
		debts:             make(map[domain.BorrowingKey]*domain.BorrowingInfo),
		fees:              newFeeBank(),
		vault:             newVault(),
	}, nil
}

// BorrowParams describe una apertura (o ampliación) de deuda. Los límites
// MinHoldTokenOut y MaxMarginDeposit protegen al borrower de ejecutar contra
// un precio peor del que vio al construir la petición; nil desactiva el límite.
type BorrowParams struct {
	Borrower  common.Address
	SaleToken common.Address
	HoldToken common.Address
	Loans     []domain.LoanInfo

	MinHoldTokenOut  *big.Int
	MaxMarginDeposit *big.Int
	// MaxDailyRate es el techo de rate que el borrower acepta; 0 = sin techo.
	MaxDailyRate uint64
	// ExternalSwap enruta la venta del salePart por un agregador whitelisted
	// en lugar del pool interno.
	ExternalSwap *domain.ExternalSwapCall
	// Deadline es un timestamp lógico absoluto.
	Deadline int64
}

// BorrowResult resume la deuda abierta y lo que el borrower tuvo que depositar.
type BorrowResult struct {
	Key              domain.BorrowingKey
	BorrowedAmount   *big.Int
	HoldTokenOut     *big.Int
	MarginDeposit    *big.Int
	LiquidationBonus *big.Int
	DailyCollateral  *big.Int // 1e18
	EntranceFee      *big.Int
}

// Borrow extrae liquidez de las posiciones indicadas, vende la pata de
// saleToken y abre (o amplía) la deuda del borrower sobre el par. Si ya existe
// deuda bajo la misma key los loans se fusionan y los importes se suman tras
// consolidar el accrual pendiente.
func (l *Ledger) Borrow(ctx context.Context, params BorrowParams) (*BorrowResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if params.Deadline < now {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrDeadlineExpired)
	}
	if params.Borrower == (common.Address{}) || params.SaleToken == (common.Address{}) || params.HoldToken == (common.Address{}) {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrZeroAddress)
	}
	if params.SaleToken == params.HoldToken || len(params.Loans) == 0 {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrInvalidAmount)
	}

	pair := domain.PairKey{SaleToken: params.SaleToken, HoldToken: params.HoldToken}
	rate := l.rates.ensure(pair, now)
	if params.MaxDailyRate > 0 && rate.dailyRateBP > params.MaxDailyRate {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrDailyRateTooHigh)
	}

	positions, holdPart, salePart, err := l.validateLoans(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ledger.Borrow: %w", err)
	}
	feeTier := positions[0].FeeTier

	borrowed := new(big.Int).Set(holdPart)
	if salePart.Sign() > 0 {
		spot, err := l.swapper.QuoteSpotValue(ctx, params.SaleToken, params.HoldToken, feeTier, salePart)
		if err != nil {
			return nil, fmt.Errorf("ledger.Borrow: quoting sale part: %w", err)
		}
		borrowed.Add(borrowed, spot)
	}
	if borrowed.Sign() <= 0 {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrInvalidAmount)
	}

	swapOut, err := l.previewSaleSwap(ctx, params, feeTier, salePart)
	if err != nil {
		return nil, fmt.Errorf("ledger.Borrow: %w", err)
	}
	holdOut := new(big.Int).Add(holdPart, swapOut)
	if params.MinHoldTokenOut != nil && holdOut.Cmp(params.MinHoldTokenOut) < 0 {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrTooLittleReceived)
	}

	margin := new(big.Int).Sub(borrowed, holdOut)
	if margin.Sign() < 0 {
		margin.SetInt64(0)
	}
	if params.MaxMarginDeposit != nil && margin.Cmp(params.MaxMarginDeposit) > 0 {
		return nil, fmt.Errorf("ledger.Borrow: %w", ErrExcessiveMarginDeposit)
	}

	entranceFee := domain.FeeByBPRoundUp(borrowed, rate.entranceFee())
	bonus := l.liquidationBonus(params.HoldToken, borrowed, len(params.Loans))
	dailyCollateral := domain.DailyCollateral(borrowed, rate.dailyRateBP)

	key := domain.ComputeBorrowingKey(params.Borrower, params.SaleToken, params.HoldToken)

	// Reparto de la parte de lenders del entrance fee, pro-rata por liquidez de
	// los loans de ESTE borrow. Los owners se resuelven antes del commit para
	// que un tokenId huérfano no pueda abortar a mitad de mutación.
	owners, err := l.loanOwners(ctx, params.Loans)
	if err != nil {
		return nil, fmt.Errorf("ledger.Borrow: %w", err)
	}

	existing := l.debts[key]
	if existing != nil {
		if _, err := l.settle(ctx, existing, rate, now); err != nil {
			return nil, fmt.Errorf("ledger.Borrow: settling prior debt: %w", err)
		}
	}

	// Commit: de aquí en adelante ya no hay validaciones que puedan fallar por
	// estado del ledger; los adaptadores son deterministas sobre los inputs ya
	// validados.
	for _, loan := range params.Loans {
		if _, _, err := l.positions.DecreaseLiquidity(ctx, loan.TokenID, loan.Liquidity); err != nil {
			return nil, fmt.Errorf("ledger.Borrow: decreasing liquidity of %d: %w", loan.TokenID, err)
		}
	}
	if salePart.Sign() > 0 && params.ExternalSwap == nil {
		if _, err := l.swapper.SwapExactInput(ctx, params.SaleToken, params.HoldToken, feeTier, salePart); err != nil {
			return nil, fmt.Errorf("ledger.Borrow: selling sale part: %w", err)
		}
	}

	if existing == nil {
		existing = &domain.BorrowingInfo{
			Key:                        key,
			Borrower:                   params.Borrower,
			SaleToken:                  params.SaleToken,
			HoldToken:                  params.HoldToken,
			BorrowedAmount:             new(big.Int),
			LiquidationBonus:           new(big.Int),
			DailyRateCollateralBalance: new(big.Int),
			AccRateSnapshot:            rate.accAt(now),
			CreatedAt:                  now,
		}
		l.debts[key] = existing
	}
	existing.BorrowedAmount.Add(existing.BorrowedAmount, borrowed)
	existing.LiquidationBonus.Add(existing.LiquidationBonus, bonus)
	existing.DailyRateCollateralBalance.Add(existing.DailyRateCollateralBalance, dailyCollateral)
	existing.UpdatedAt = now

	l.loans.add(key, params.Borrower, params.Loans)
	rate.checkpoint(now)
	rate.adjustTotalBorrowed(borrowed)

	lenderShare, platformShare := domain.SplitFees(domain.Normalize(entranceFee), l.platformFeesBP)
	l.fees.creditPlatform(params.HoldToken, platformShare)
	l.creditProRata(owners, params.Loans, params.HoldToken, lenderShare)

	collateralNative := domain.DenormalizeRoundUp(dailyCollateral)
	inflow := new(big.Int).Add(borrowed, bonus)
	inflow.Add(inflow, collateralNative)
	inflow.Add(inflow, entranceFee)
	l.vault.deposit(params.HoldToken, inflow)

	l.log.Info("debt opened",
		"key", key.Hex(),
		"borrower", params.Borrower.Hex(),
		"borrowed", borrowed.String(),
		"margin", margin.String(),
		"loans", len(params.Loans),
	)

	return &BorrowResult{
		Key:              key,
		BorrowedAmount:   borrowed,
		HoldTokenOut:     holdOut,
		MarginDeposit:    margin,
		LiquidationBonus: bonus,
		DailyCollateral:  dailyCollateral,
		EntranceFee:      entranceFee,
	}, nil
}

// validateLoans comprueba cada loan contra su posición y agrega las patas
// (holdPart, salePart) cotizadas a precio actual. Todas las posiciones deben
// pertenecer al mismo pool del par pedido.
func (l *Ledger) validateLoans(ctx context.Context, params BorrowParams) ([]domain.PositionInfo, *big.Int, *big.Int, error) {
	minLiq := big.NewInt(domain.MinBorrowedLiquidity)
	holdPart := new(big.Int)
	salePart := new(big.Int)
	infos := make([]domain.PositionInfo, 0, len(params.Loans))

	for _, loan := range params.Loans {
		if loan.Liquidity == nil || loan.Liquidity.Sign() <= 0 {
			return nil, nil, nil, ErrInvalidAmount
		}
		if loan.Liquidity.Cmp(minLiq) < 0 {
			return nil, nil, nil, ErrTooLittleBorrowedLiquidity
		}
		pos, err := l.positions.Position(ctx, loan.TokenID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading position %d: %w", loan.TokenID, err)
		}
		if !pos.HoldsPair(params.SaleToken, params.HoldToken) {
			return nil, nil, nil, ErrPositionsFromDifferentPools
		}
		if len(infos) > 0 && !pos.SamePool(infos[0]) {
			return nil, nil, nil, ErrPositionsFromDifferentPools
		}

		available := new(big.Int).Sub(pos.Liquidity, l.loans.committedFor(loan.TokenID))
		if loan.Liquidity.Cmp(available) > 0 {
			return nil, nil, nil, ErrInsufficientLiquidity
		}

		amount0, amount1, err := l.positions.AmountsForLiquidity(ctx, loan.TokenID, loan.Liquidity)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("quoting position %d: %w", loan.TokenID, err)
		}
		if pos.Token0 == params.HoldToken {
			holdPart.Add(holdPart, amount0)
			salePart.Add(salePart, amount1)
		} else {
			holdPart.Add(holdPart, amount1)
			salePart.Add(salePart, amount0)
		}
		infos = append(infos, pos)
	}
	return infos, holdPart, salePart, nil
}

// previewSaleSwap obtiene el holdToken que rinde vender salePart, por la ruta
// interna (quote, se ejecuta en el commit) o por el agregador externo (se
// ejecuta aquí: la operación de agregador es del engine y un abort posterior
// simplemente la descarta).
func (l *Ledger) previewSaleSwap(ctx context.Context, params BorrowParams, feeTier uint32, salePart *big.Int) (*big.Int, error) {
	if salePart.Sign() <= 0 {
		return new(big.Int), nil
	}
	if params.ExternalSwap == nil {
		out, err := l.swapper.QuoteExactInput(ctx, params.SaleToken, params.HoldToken, feeTier, salePart)
		if err != nil {
			return nil, fmt.Errorf("quoting internal swap: %w", err)
		}
		return out, nil
	}

	call := *params.ExternalSwap
	if _, ok := l.whitelist[swapCallKey{target: call.Target, selector: call.Selector}]; !ok {
		return nil, ErrSwapCallNotWhitelisted
	}
	call.AmountIn = new(big.Int).Set(salePart)
	out, err := l.external.Swap(ctx, call, params.SaleToken, params.HoldToken)
	if err != nil {
		return nil, fmt.Errorf("external swap via %s: %w", call.Target.Hex(), err)
	}
	return out, nil
}

// liquidationBonus calcula el bonus para borrowed en el token dado: override
// por token si existe, default del protocolo si no, con el suelo absoluto
// multiplicado por el número de loans.
func (l *Ledger) liquidationBonus(token common.Address, borrowed *big.Int, times int) *big.Int {
	bp := l.defaultLiqBonusBP
	var minAmount *big.Int
	if ov, ok := l.bonusOverrides[token]; ok {
		bp = ov.BonusBP
		minAmount = ov.MinBonusAmount
	}
	bonus := domain.FeeByBPRoundUp(borrowed, bp)
	if minAmount != nil && minAmount.Sign() > 0 {
		floor := new(big.Int).Mul(minAmount, big.NewInt(int64(times)))
		if bonus.Cmp(floor) < 0 {
			bonus = floor
		}
	}
	return bonus
}

// loanOwners resuelve el dueño actual de cada loan, en el mismo orden.
func (l *Ledger) loanOwners(ctx context.Context, loans []domain.LoanInfo) ([]common.Address, error) {
	owners := make([]common.Address, len(loans))
	for i, loan := range loans {
		owner, err := l.positions.OwnerOf(ctx, loan.TokenID)
		if err != nil {
			return nil, fmt.Errorf("resolving owner of %d: %w", loan.TokenID, err)
		}
		owners[i] = owner
	}
	return owners, nil
}

// creditProRata reparte amount (1e18) entre los owners en proporción a la
// liquidez de su loan. El residuo del redondeo va al último para que la suma
// repartida iguale exactamente amount.
func (l *Ledger) creditProRata(owners []common.Address, loans []domain.LoanInfo, token common.Address, amount *big.Int) {
	if amount.Sign() <= 0 || len(loans) == 0 {
		return
	}
	total := new(big.Int)
	for _, loan := range loans {
		total.Add(total, loan.Liquidity)
	}
	if total.Sign() <= 0 {
		return
	}
	distributed := new(big.Int)
	for i, loan := range loans {
		var share *big.Int
		if i == len(loans)-1 {
			share = new(big.Int).Sub(amount, distributed)
		} else {
			share = new(big.Int).Mul(amount, loan.Liquidity)
			share.Quo(share, total)
			distributed.Add(distributed, share)
		}
		l.fees.creditLender(owners[i], token, share)
	}
}

// settle consolida el accrual pendiente de la deuda hasta now: la parte
// cubierta por colateral pasa a los buckets de fees (split plataforma/lenders),
// el balance queda firmado (puede irse a negativo) y el snapshot avanza.
// Devuelve lo efectivamente repartido (1e18). A mismo timestamp es un no-op,
// lo que hace el harvest idempotente.
func (l *Ledger) settle(ctx context.Context, d *domain.BorrowingInfo, rate *pairRate, now int64) (*big.Int, error) {
	accNow := rate.accAt(now)
	delta := new(big.Int).Sub(accNow, d.AccRateSnapshot)
	accrued := domain.AccruedFeeFromRateSeconds(d.BorrowedAmount, delta)
	if accrued.Sign() <= 0 {
		d.AccRateSnapshot = accNow
		return new(big.Int), nil
	}

	collected := new(big.Int).Set(accrued)
	if d.DailyRateCollateralBalance.Sign() <= 0 {
		collected.SetInt64(0)
	} else if collected.Cmp(d.DailyRateCollateralBalance) > 0 {
		collected.Set(d.DailyRateCollateralBalance)
	}

	if collected.Sign() > 0 {
		loans := l.loans.loans(d.Key)
		owners, err := l.loanOwners(ctx, loans)
		if err != nil {
			return nil, err
		}
		lenderShare, platformShare := domain.SplitFees(collected, l.platformFeesBP)
		l.fees.creditPlatform(d.HoldToken, platformShare)
		l.creditProRata(owners, loans, d.HoldToken, lenderShare)
	}

	d.DailyRateCollateralBalance.Sub(d.DailyRateCollateralBalance, accrued)
	d.AccRateSnapshot = accNow
	d.UpdatedAt = now
	return collected, nil
}

// liveBalance devuelve el colateral vivo de la deuda a now (1e18, firmado),
// sin mutar estado.
func (l *Ledger) liveBalance(d *domain.BorrowingInfo, now int64) *big.Int {
	rate, ok := l.rates.pairs[domain.PairKey{SaleToken: d.SaleToken, HoldToken: d.HoldToken}]
	if !ok {
		return new(big.Int).Set(d.DailyRateCollateralBalance)
	}
	delta := new(big.Int).Sub(rate.accAt(now), d.AccRateSnapshot)
	accrued := domain.AccruedFeeFromRateSeconds(d.BorrowedAmount, delta)
	return new(big.Int).Sub(d.DailyRateCollateralBalance, accrued)
}
