package uniswap

// flashloan.go — agregador de flash loans simulado. Cada protocolo registrado
// presta cualquier importe del token a cambio de un premium en bps; el préstamo
// vive dentro del callback y si éste falla no queda rastro.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

var (
	ErrNoFlashRoute      = errors.New("uniswap: no registered route can serve the flash loan")
	ErrEmptyFlashRoutes  = errors.New("uniswap: empty flash loan route list")
	ErrUnknownFlashToken = errors.New("uniswap: flash route token mismatch")
)

// FlashAggregator implementa el puerto FlashLoanProvider.
type FlashAggregator struct {
	mu  sync.Mutex
	log *slog.Logger
	// feeBP por protocolo registrado ("aave", "uniswap"...).
	protocols map[string]uint64
}

// NewFlashAggregator crea el agregador sin protocolos registrados.
func NewFlashAggregator(log *slog.Logger) *FlashAggregator {
	return &FlashAggregator{
		log:       log.With("component", "flash"),
		protocols: make(map[string]uint64),
	}
}

// RegisterProtocol da de alta un protocolo de lending con su fee en bps.
func (f *FlashAggregator) RegisterProtocol(name string, feeBP uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protocols[name] = feeBP
}

// selectRoute localiza la primera ruta cuyo token coincide y cuyo protocolo
// está registrado. tokenMatch distingue "ningún protocolo registrado" de
// "ninguna ruta lleva este token".
func (f *FlashAggregator) selectRoute(routes domain.FlashLoanRoutes, token common.Address) (feeBP uint64, proto string, found, tokenMatch bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, route := range routes.Routes {
		if route.Token != token {
			continue
		}
		tokenMatch = true
		if bp, ok := f.protocols[route.Protocol]; ok {
			return bp, route.Protocol, true, true
		}
	}
	return 0, "", false, tokenMatch
}

// QuotePremium devuelve, sin ejecutar nada, el premium que cobraría Supply con
// las mismas rutas. Los fallos son los mismos que devolvería Supply.
func (f *FlashAggregator) QuotePremium(_ context.Context, routes domain.FlashLoanRoutes, token common.Address, amount *big.Int) (*big.Int, error) {
	if len(routes.Routes) == 0 {
		return nil, fmt.Errorf("uniswap.FlashAggregator.QuotePremium: %w", ErrEmptyFlashRoutes)
	}
	feeBP, _, found, tokenMatch := f.selectRoute(routes, token)
	if !found {
		if routes.Strict {
			if !tokenMatch {
				return nil, fmt.Errorf("uniswap.FlashAggregator.QuotePremium: %w", ErrUnknownFlashToken)
			}
			return nil, fmt.Errorf("uniswap.FlashAggregator.QuotePremium: %w", ErrNoFlashRoute)
		}
		return new(big.Int), nil
	}
	premium := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBP))
	return premium.Quo(premium, big.NewInt(domain.BasisPoints)), nil
}

// Supply recorre las rutas en orden y sirve el préstamo con la primera cuyo
// protocolo está registrado y cuyo token coincide. Con Strict, una lista sin
// ruta viable falla en lugar de degradar.
func (f *FlashAggregator) Supply(ctx context.Context, routes domain.FlashLoanRoutes, token common.Address, amount *big.Int, fn func(premium *big.Int) error) error {
	if len(routes.Routes) == 0 {
		return fmt.Errorf("uniswap.FlashAggregator.Supply: %w", ErrEmptyFlashRoutes)
	}
	feeBP, proto, found, tokenMatch := f.selectRoute(routes, token)
	if !found {
		if routes.Strict {
			if !tokenMatch {
				return fmt.Errorf("uniswap.FlashAggregator.Supply: %w", ErrUnknownFlashToken)
			}
			return fmt.Errorf("uniswap.FlashAggregator.Supply: %w", ErrNoFlashRoute)
		}
		// Modo laxo: préstamo sin premium, equivale a financiarse del propio
		// balance de la operación.
		return fn(new(big.Int))
	}

	premium := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBP))
	premium.Quo(premium, big.NewInt(domain.BasisPoints))
	if err := fn(premium); err != nil {
		return fmt.Errorf("uniswap.FlashAggregator.Supply: callback via %s: %w", proto, err)
	}
	f.log.Debug("flash loan served", "protocol", proto, "amount", amount.String(), "premium", premium.String())
	return nil
}
