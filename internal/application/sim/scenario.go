package sim

// scenario.go — modelo YAML de un escenario de simulación. Los actores y
// tokens se nombran por etiqueta y sus direcciones se derivan de forma
// determinista, para que los escenarios sean legibles y reproducibles.

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

var (
	ErrBadScenario = errors.New("sim: malformed scenario")
	ErrBadAmount   = errors.New("sim: malformed big integer amount")
)

// Scenario es un escenario completo: estado inicial del mercado más la
// secuencia de pasos a ejecutar.
type Scenario struct {
	Name      string `yaml:"name"`
	StartTime int64  `yaml:"start_time"`
	// Owner es la etiqueta del dueño del protocolo.
	Owner string `yaml:"owner"`

	Pools     []PoolSeed     `yaml:"pools"`
	Positions []PositionSeed `yaml:"positions"`
	Steps     []Step         `yaml:"steps"`
}

// PoolSeed siembra un pool del mercado simulado.
type PoolSeed struct {
	TokenA       string `yaml:"token_a"`
	TokenB       string `yaml:"token_b"`
	FeeTier      uint32 `yaml:"fee_tier"`
	SqrtPriceX96 string `yaml:"sqrt_price_x96"`
}

// PositionSeed acuña una posición NFT inicial. Los token ids se asignan en
// orden de declaración empezando en 1; los pasos los referencian por índice.
type PositionSeed struct {
	Owner        string `yaml:"owner"`
	TokenA       string `yaml:"token_a"`
	TokenB       string `yaml:"token_b"`
	FeeTier      uint32 `yaml:"fee_tier"`
	SqrtLowerX96 string `yaml:"sqrt_lower_x96"`
	SqrtUpperX96 string `yaml:"sqrt_upper_x96"`
	Liquidity    string `yaml:"liquidity"`
}

// Step es un paso del escenario. Op discrimina qué campos aplican.
type Step struct {
	// Advance avanza el reloj lógico en segundos antes de ejecutar Op (si hay).
	Advance int64  `yaml:"advance,omitempty"`
	Op      string `yaml:"op,omitempty"`
	Actor   string `yaml:"actor,omitempty"`

	SaleToken string     `yaml:"sale_token,omitempty"`
	HoldToken string     `yaml:"hold_token,omitempty"`
	Loans     []LoanSeed `yaml:"loans,omitempty"`

	MaxMarginDeposit string `yaml:"max_margin_deposit,omitempty"`
	MinHoldTokenOut  string `yaml:"min_hold_token_out,omitempty"`
	MaxDailyRate     uint64 `yaml:"max_daily_rate,omitempty"`
	DeadlineOffset   int64  `yaml:"deadline_offset,omitempty"`

	// Borrower localiza la deuda objetivo (junto a sale/hold) en repay,
	// harvest, top-up y takeover.
	Borrower string `yaml:"borrower,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
	RateBP   uint64 `yaml:"rate_bp,omitempty"`
	Tokens   []string `yaml:"tokens,omitempty"`
}

// LoanSeed referencia una posición sembrada por su orden de declaración (1-based).
type LoanSeed struct {
	Position  int    `yaml:"position"`
	Liquidity string `yaml:"liquidity"`
}

// LoadScenario lee y valida un escenario YAML.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim.LoadScenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("sim.LoadScenario: parse %q: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("sim.LoadScenario: %q: %w", path, err)
	}
	return &sc, nil
}

// Validate comprueba la coherencia estructural del escenario.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name: %w", ErrBadScenario)
	}
	if s.Owner == "" {
		return fmt.Errorf("missing owner: %w", ErrBadScenario)
	}
	if s.StartTime <= 0 {
		return fmt.Errorf("start_time must be positive: %w", ErrBadScenario)
	}
	if len(s.Pools) == 0 {
		return fmt.Errorf("at least one pool required: %w", ErrBadScenario)
	}
	for i, step := range s.Steps {
		if step.Op == "" && step.Advance <= 0 {
			return fmt.Errorf("step %d does nothing: %w", i, ErrBadScenario)
		}
		for _, loan := range step.Loans {
			if loan.Position < 1 || loan.Position > len(s.Positions) {
				return fmt.Errorf("step %d references unknown position %d: %w", i, loan.Position, ErrBadScenario)
			}
		}
	}
	return nil
}

// AddressFor deriva una dirección determinista para una etiqueta de actor o
// token del escenario.
func AddressFor(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("levsim/" + label))[12:])
}

// ParseAmount parsea un importe decimal del escenario. Cadena vacía = nil
// (el límite u opción queda desactivado).
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q: %w", s, ErrBadAmount)
	}
	return v, nil
}
