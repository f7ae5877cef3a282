package uniswap

// aggregator.go — agregador externo de swaps simulado. Representa la liquidez
// off-pool (1inch, 0x...) como un precio spot con un spread fijo por ruta: no
// mueve el precio de los pools internos. El ledger sólo lo invoca con pares
// (target, selector) ya whitelisteados.

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

var ErrRouteNotRegistered = errors.New("uniswap: aggregator route not registered")

type aggregatorRoute struct {
	feeTier  uint32
	spreadBP uint64
}

// Aggregator implementa el puerto ExternalSwapper sobre el mercado simulado.
type Aggregator struct {
	mu       sync.Mutex
	exchange *Exchange
	routes   map[common.Address]map[[4]byte]aggregatorRoute
}

// NewAggregator crea un agregador sin rutas registradas.
func NewAggregator(exchange *Exchange) *Aggregator {
	return &Aggregator{
		exchange: exchange,
		routes:   make(map[common.Address]map[[4]byte]aggregatorRoute),
	}
}

// RegisterRoute da de alta una ruta (target, selector) que ejecuta a precio
// spot del pool de feeTier menos spreadBP.
func (a *Aggregator) RegisterRoute(target common.Address, selector [4]byte, feeTier uint32, spreadBP uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.routes[target] == nil {
		a.routes[target] = make(map[[4]byte]aggregatorRoute)
	}
	a.routes[target][selector] = aggregatorRoute{feeTier: feeTier, spreadBP: spreadBP}
}

// Swap ejecuta la llamada externa y devuelve el amountOut obtenido.
func (a *Aggregator) Swap(ctx context.Context, call domain.ExternalSwapCall, tokenIn, tokenOut common.Address) (*big.Int, error) {
	a.mu.Lock()
	route, ok := a.routes[call.Target][call.Selector]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("uniswap.Aggregator.Swap: target %s: %w", call.Target.Hex(), ErrRouteNotRegistered)
	}

	spot, err := a.exchange.QuoteSpotValue(ctx, tokenIn, tokenOut, route.feeTier, call.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("uniswap.Aggregator.Swap: %w", err)
	}
	out := new(big.Int).Mul(spot, big.NewInt(int64(domain.BasisPoints-route.spreadBP)))
	out.Quo(out, big.NewInt(domain.BasisPoints))
	return out, nil
}
