package uniswap

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/levsim/internal/domain"
)

func TestFlashSupply_EmptyRoutes(t *testing.T) {
	f := NewFlashAggregator(testLog())
	err := f.Supply(context.Background(), domain.FlashLoanRoutes{}, tokenA, big.NewInt(1_000), func(*big.Int) error {
		t.Fatal("el callback no debe ejecutarse sin rutas")
		return nil
	})
	assert.ErrorIs(t, err, ErrEmptyFlashRoutes)
}

func TestFlashSupply_StrictWithoutViableRoute(t *testing.T) {
	f := NewFlashAggregator(testLog())
	routes := domain.FlashLoanRoutes{
		Strict: true,
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenA}},
	}
	err := f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000), func(*big.Int) error {
		t.Fatal("el callback no debe ejecutarse en modo estricto sin ruta")
		return nil
	})
	assert.ErrorIs(t, err, ErrNoFlashRoute)
}

func TestFlashSupply_LaxFallsBackToZeroPremium(t *testing.T) {
	f := NewFlashAggregator(testLog())
	routes := domain.FlashLoanRoutes{
		Routes: []domain.FlashLoanRoute{{Protocol: "unknown", Token: tokenA}},
	}

	var seen *big.Int
	err := f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000), func(premium *big.Int) error {
		seen = premium
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, seen.Sign())
}

func TestFlashSupply_PremiumFromProtocolFee(t *testing.T) {
	f := NewFlashAggregator(testLog())
	f.RegisterProtocol("aave", 9)
	routes := domain.FlashLoanRoutes{
		Routes: []domain.FlashLoanRoute{
			{Protocol: "uniswap", Token: tokenA}, // no registrado: se salta
			{Protocol: "aave", Token: tokenA},
		},
	}

	var seen *big.Int
	err := f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000_000), func(premium *big.Int) error {
		seen = premium
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "900", seen.String()) // 9 bp de 1M
}

func TestFlashSupply_SkipsTokenMismatch(t *testing.T) {
	f := NewFlashAggregator(testLog())
	f.RegisterProtocol("aave", 9)
	routes := domain.FlashLoanRoutes{
		Strict: true,
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenB}},
	}
	err := f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000), func(*big.Int) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownFlashToken)
}

// --- QuotePremium ---

func TestFlashQuotePremium_MatchesSupply(t *testing.T) {
	f := NewFlashAggregator(testLog())
	f.RegisterProtocol("aave", 9)
	routes := domain.FlashLoanRoutes{
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenA}},
	}

	quoted, err := f.QuotePremium(context.Background(), routes, tokenA, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "900", quoted.String())

	var served *big.Int
	require.NoError(t, f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000_000), func(premium *big.Int) error {
		served = premium
		return nil
	}))
	assert.Equal(t, quoted.String(), served.String())
}

func TestFlashQuotePremium_LaxFallbackIsZero(t *testing.T) {
	f := NewFlashAggregator(testLog())
	routes := domain.FlashLoanRoutes{
		Routes: []domain.FlashLoanRoute{{Protocol: "unknown", Token: tokenA}},
	}
	premium, err := f.QuotePremium(context.Background(), routes, tokenA, big.NewInt(1_000))
	require.NoError(t, err)
	assert.Zero(t, premium.Sign())
}

func TestFlashQuotePremium_StrictErrors(t *testing.T) {
	f := NewFlashAggregator(testLog())

	_, err := f.QuotePremium(context.Background(), domain.FlashLoanRoutes{}, tokenA, big.NewInt(1))
	assert.ErrorIs(t, err, ErrEmptyFlashRoutes)

	strict := domain.FlashLoanRoutes{
		Strict: true,
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenA}},
	}
	_, err = f.QuotePremium(context.Background(), strict, tokenA, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoFlashRoute)

	mismatch := domain.FlashLoanRoutes{
		Strict: true,
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenB}},
	}
	f.RegisterProtocol("aave", 9)
	_, err = f.QuotePremium(context.Background(), mismatch, tokenA, big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnknownFlashToken)
}

func TestFlashSupply_CallbackErrorPropagates(t *testing.T) {
	f := NewFlashAggregator(testLog())
	f.RegisterProtocol("aave", 9)
	routes := domain.FlashLoanRoutes{
		Routes: []domain.FlashLoanRoute{{Protocol: "aave", Token: tokenA}},
	}

	boom := errors.New("swap failed")
	err := f.Supply(context.Background(), routes, tokenA, big.NewInt(1_000), func(*big.Int) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
