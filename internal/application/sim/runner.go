package sim

// runner.go — ejecuta un escenario contra un mercado y un ledger recién
// construidos. Cada paso queda journaled en storage junto al snapshot del
// ledger resultante, de modo que un run es reproducible y auditable entero.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/levsim/internal/adapters/uniswap"
	"github.com/alejandrodnm/levsim/internal/application/ledger"
	"github.com/alejandrodnm/levsim/internal/domain"
	"github.com/alejandrodnm/levsim/internal/ports"
)

// defaultDeadlineOffset es el margen de deadline de los pasos que no lo fijan.
const defaultDeadlineOffset = 300

// Runner ejecuta escenarios. Un Runner es reutilizable: cada Run construye su
// propio mercado, ledger y reloj.
type Runner struct {
	log      *slog.Logger
	storage  ports.Storage
	reporter ports.Reporter
	limiter  *rate.Limiter
}

// NewRunner crea el runner. stepsPerSecond acota el ritmo de ejecución para
// que los runs largos puedan seguirse en vivo; 0 = sin límite.
func NewRunner(log *slog.Logger, storage ports.Storage, reporter ports.Reporter, stepsPerSecond float64) *Runner {
	limit := rate.Inf
	if stepsPerSecond > 0 {
		limit = rate.Limit(stepsPerSecond)
	}
	return &Runner{
		log:      log.With("component", "runner"),
		storage:  storage,
		reporter: reporter,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// run es el estado vivo de una ejecución.
type run struct {
	clock    *Clock
	exchange *uniswap.Exchange
	ledger   *ledger.Ledger
	// positionIDs mapea el índice 1-based de PositionSeed al token id acuñado.
	positionIDs []uint64
}

// Run ejecuta el escenario completo y devuelve el resumen persistido. Un paso
// fallido se registra y el run continúa: los escenarios prueban también los
// caminos de rechazo.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*ports.RunRecord, error) {
	record := ports.RunRecord{
		ID:        uuid.NewString(),
		Scenario:  sc.Name,
		StartedAt: time.Now().UTC(),
	}
	if err := r.storage.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	r.log.Info("run started", "run_id", record.ID, "scenario", sc.Name, "steps", len(sc.Steps))

	st, err := r.build(sc)
	if err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}

	for i, step := range sc.Steps {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("sim.Run: %w", err)
		}
		st.clock.Advance(step.Advance)
		if step.Op == "" {
			continue
		}

		record.Operations++
		detail, opErr := r.executeStep(ctx, st, step)
		op := ports.OperationRecord{
			RunID:     record.ID,
			Seq:       i,
			Kind:      step.Op,
			Timestamp: st.clock.Now(),
			Detail:    detail,
		}
		if opErr != nil {
			record.Failed++
			op.Err = opErr.Error()
			r.log.Warn("step failed", "run_id", record.ID, "seq", i, "op", step.Op, "error", opErr)
		}
		if err := r.storage.SaveOperation(ctx, op); err != nil {
			return nil, fmt.Errorf("sim.Run: %w", err)
		}
		if err := r.storage.SaveSnapshot(ctx, record.ID, i, st.ledger.Snapshot()); err != nil {
			return nil, fmt.Errorf("sim.Run: %w", err)
		}
	}

	record.FinishedAt = time.Now().UTC()
	if err := r.storage.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	if err := r.reporter.Report(ctx, st.ledger.Snapshot()); err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	r.log.Info("run finished",
		"run_id", record.ID,
		"operations", record.Operations,
		"failed", record.Failed,
	)
	return &record, nil
}

// build construye mercado y ledger y siembra pools y posiciones.
func (r *Runner) build(sc *Scenario) (*run, error) {
	clock := NewClock(sc.StartTime)
	exchange := uniswap.NewExchange(r.log)
	aggregator := uniswap.NewAggregator(exchange)
	flash := uniswap.NewFlashAggregator(r.log)
	flash.RegisterProtocol("uniswap", 5)
	flash.RegisterProtocol("aave", 9)

	book, err := ledger.New(r.log, clock, exchange, exchange, aggregator, flash, AddressFor(sc.Owner))
	if err != nil {
		return nil, err
	}

	for _, seed := range sc.Pools {
		price, err := ParseAmount(seed.SqrtPriceX96)
		if err != nil {
			return nil, fmt.Errorf("pool %s/%s: %w", seed.TokenA, seed.TokenB, err)
		}
		if err := exchange.CreatePool(AddressFor(seed.TokenA), AddressFor(seed.TokenB), seed.FeeTier, price); err != nil {
			return nil, err
		}
	}

	st := &run{clock: clock, exchange: exchange, ledger: book}
	for _, seed := range sc.Positions {
		lower, err := ParseAmount(seed.SqrtLowerX96)
		if err != nil {
			return nil, fmt.Errorf("position of %s: %w", seed.Owner, err)
		}
		upper, err := ParseAmount(seed.SqrtUpperX96)
		if err != nil {
			return nil, fmt.Errorf("position of %s: %w", seed.Owner, err)
		}
		liquidity, err := ParseAmount(seed.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("position of %s: %w", seed.Owner, err)
		}
		id, err := exchange.MintPosition(
			AddressFor(seed.Owner),
			AddressFor(seed.TokenA), AddressFor(seed.TokenB),
			seed.FeeTier, lower, upper, liquidity,
		)
		if err != nil {
			return nil, err
		}
		st.positionIDs = append(st.positionIDs, id)
	}
	return st, nil
}

// executeStep despacha un paso del escenario contra el ledger.
func (r *Runner) executeStep(ctx context.Context, st *run, step Step) (string, error) {
	actor := AddressFor(step.Actor)
	sale := AddressFor(step.SaleToken)
	hold := AddressFor(step.HoldToken)
	deadline := st.clock.Now() + step.DeadlineOffset
	if step.DeadlineOffset == 0 {
		deadline = st.clock.Now() + defaultDeadlineOffset
	}

	switch step.Op {
	case "borrow":
		loans := make([]domain.LoanInfo, 0, len(step.Loans))
		for _, seed := range step.Loans {
			liquidity, err := ParseAmount(seed.Liquidity)
			if err != nil {
				return "", err
			}
			loans = append(loans, domain.LoanInfo{
				TokenID:   st.positionIDs[seed.Position-1],
				Liquidity: liquidity,
			})
		}
		maxMargin, err := ParseAmount(step.MaxMarginDeposit)
		if err != nil {
			return "", err
		}
		minOut, err := ParseAmount(step.MinHoldTokenOut)
		if err != nil {
			return "", err
		}
		res, err := st.ledger.Borrow(ctx, ledger.BorrowParams{
			Borrower:         actor,
			SaleToken:        sale,
			HoldToken:        hold,
			Loans:            loans,
			MaxMarginDeposit: maxMargin,
			MinHoldTokenOut:  minOut,
			MaxDailyRate:     step.MaxDailyRate,
			Deadline:         deadline,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("key=%s borrowed=%s margin=%s", res.Key.Hex(), res.BorrowedAmount, res.MarginDeposit), nil

	case "repay", "emergency":
		key := r.debtKey(step, actor, sale, hold)
		minOut, err := ParseAmount(step.MinHoldTokenOut)
		if err != nil {
			return "", err
		}
		res, err := st.ledger.Repay(ctx, ledger.RepayParams{
			Caller:          actor,
			Key:             key,
			IsEmergency:     step.Op == "emergency",
			MinHoldTokenOut: minOut,
			Deadline:        deadline,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("key=%s out=%s closed=%t", key.Hex(), res.HoldTokenOut, res.Closed), nil

	case "harvest":
		key := r.debtKey(step, actor, sale, hold)
		collected, err := st.ledger.Harvest(ctx, key)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("key=%s collected=%s", key.Hex(), collected), nil

	case "increase_collateral":
		key := r.debtKey(step, actor, sale, hold)
		amount, err := ParseAmount(step.Amount)
		if err != nil {
			return "", err
		}
		balance, err := st.ledger.IncreaseCollateralBalance(ctx, key, amount, deadline)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("key=%s balance=%s", key.Hex(), balance), nil

	case "take_over":
		key := r.debtKey(step, actor, sale, hold)
		amount, err := ParseAmount(step.Amount)
		if err != nil {
			return "", err
		}
		newKey, err := st.ledger.TakeOverDebt(ctx, actor, key, amount, deadline)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("old=%s new=%s", key.Hex(), newKey.Hex()), nil

	case "update_daily_rate":
		if err := st.ledger.UpdateHoldTokenDailyRate(actor, sale, hold, step.RateBP); err != nil {
			return "", err
		}
		return fmt.Sprintf("pair=%s/%s rate=%d", step.SaleToken, step.HoldToken, step.RateBP), nil

	case "update_entrance_fee":
		if err := st.ledger.UpdateHoldTokenEntranceFee(actor, sale, hold, step.RateBP); err != nil {
			return "", err
		}
		return fmt.Sprintf("pair=%s/%s fee=%d", step.SaleToken, step.HoldToken, step.RateBP), nil

	case "collect_fees", "collect_protocol":
		return r.collect(ctx, st, step, actor)

	default:
		return "", fmt.Errorf("sim: unknown op %q: %w", step.Op, ErrBadScenario)
	}
}

// debtKey localiza la deuda objetivo: la del borrower del paso, o la del
// propio actor si el paso no lo indica.
func (r *Runner) debtKey(step Step, actor, sale, hold common.Address) domain.BorrowingKey {
	borrower := actor
	if step.Borrower != "" {
		borrower = AddressFor(step.Borrower)
	}
	return domain.ComputeBorrowingKey(borrower, sale, hold)
}

func (r *Runner) collect(ctx context.Context, st *run, step Step, actor common.Address) (string, error) {
	tokens := make([]common.Address, 0, len(step.Tokens))
	for _, label := range step.Tokens {
		tokens = append(tokens, AddressFor(label))
	}
	var (
		out map[common.Address]*big.Int
		err error
	)
	if step.Op == "collect_protocol" {
		out, err = st.ledger.CollectProtocol(ctx, actor, tokens)
	} else {
		out, err = st.ledger.CollectLoansFees(ctx, actor, tokens)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("claims=%d", len(out)), nil
}
