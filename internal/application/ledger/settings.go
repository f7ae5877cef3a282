package ledger

// settings.go — superficie de administración: settings del owner, whitelist de
// swaps externos y rates por par del operator.

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// UpdateSettings aplica un cambio de parámetro de protocolo. Sólo el owner.
// Cada item valida su payload completo antes de tocar nada: un update
// malformado se rechaza entero.
func (l *Ledger) UpdateSettings(caller common.Address, update domain.SettingsUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return fmt.Errorf("ledger.UpdateSettings: %w", ErrOnlyOwner)
	}

	switch update.Item {
	case domain.SettingPlatformFees:
		if update.BP > domain.MaxPlatformFeesBP {
			return fmt.Errorf("ledger.UpdateSettings: platform fees %d: %w", update.BP, ErrInvalidSettings)
		}
		l.platformFeesBP = update.BP

	case domain.SettingDefaultLiquidationBonus:
		if update.BP > domain.MaxLiquidationBonusBP {
			return fmt.Errorf("ledger.UpdateSettings: default liquidation bonus %d: %w", update.BP, ErrInvalidSettings)
		}
		l.defaultLiqBonusBP = update.BP

	case domain.SettingOperator:
		if update.Address == (common.Address{}) {
			return fmt.Errorf("ledger.UpdateSettings: operator: %w", ErrZeroAddress)
		}
		l.operator = update.Address

	case domain.SettingTokenLiquidationBonus:
		if update.Token == (common.Address{}) {
			return fmt.Errorf("ledger.UpdateSettings: bonus token: %w", ErrZeroAddress)
		}
		if update.BP > domain.MaxLiquidationBonusBP {
			return fmt.Errorf("ledger.UpdateSettings: token liquidation bonus %d: %w", update.BP, ErrInvalidSettings)
		}
		if update.MinAmount == nil || update.MinAmount.Sign() < 0 {
			return fmt.Errorf("ledger.UpdateSettings: min bonus amount: %w", ErrInvalidSettings)
		}
		l.bonusOverrides[update.Token] = domain.TokenBonus{
			BonusBP:        update.BP,
			MinBonusAmount: update.MinAmount,
		}

	case domain.SettingFlashLoanAggregator:
		if update.Address == (common.Address{}) {
			return fmt.Errorf("ledger.UpdateSettings: flash loan aggregator: %w", ErrZeroAddress)
		}
		l.flashLoanAggregator = update.Address

	case domain.SettingLightQuoter:
		if update.Address == (common.Address{}) {
			return fmt.Errorf("ledger.UpdateSettings: light quoter: %w", ErrZeroAddress)
		}
		l.lightQuoter = update.Address

	case domain.SettingVaultFlashFee:
		if update.Token == (common.Address{}) {
			return fmt.Errorf("ledger.UpdateSettings: flash fee token: %w", ErrZeroAddress)
		}
		if update.BP > domain.BasisPoints {
			return fmt.Errorf("ledger.UpdateSettings: vault flash fee %d: %w", update.BP, ErrInvalidSettings)
		}
		l.vault.flashFeeBP[update.Token] = update.BP

	default:
		return fmt.Errorf("ledger.UpdateSettings: item %d: %w", update.Item, ErrInvalidSettings)
	}

	l.log.Info("settings updated", "item", update.Item, "caller", caller.Hex())
	return nil
}

// SetSwapCallToWhitelist aprueba o revoca un par (target, selector) para swaps
// externos. Sólo el owner. Aprobar un target no aprueba todos sus métodos.
func (l *Ledger) SetSwapCallToWhitelist(caller, target common.Address, selector [4]byte, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return fmt.Errorf("ledger.SetSwapCallToWhitelist: %w", ErrOnlyOwner)
	}
	if target == (common.Address{}) {
		return fmt.Errorf("ledger.SetSwapCallToWhitelist: %w", ErrZeroAddress)
	}
	key := swapCallKey{target: target, selector: selector}
	if approved {
		l.whitelist[key] = struct{}{}
	} else {
		delete(l.whitelist, key)
	}
	return nil
}

// UpdateHoldTokenDailyRate cambia el daily rate del par dirigido. Sólo el
// operator. El acumulador del par se consolida al rate viejo antes del cambio,
// de modo que las deudas vivas devengan cada tramo a su rate.
func (l *Ledger) UpdateHoldTokenDailyRate(caller, saleToken, holdToken common.Address, rateBP uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.operator {
		return fmt.Errorf("ledger.UpdateHoldTokenDailyRate: %w", ErrOnlyOperator)
	}
	pair := domain.PairKey{SaleToken: saleToken, HoldToken: holdToken}
	if err := l.rates.updateDailyRate(pair, rateBP, l.clock.Now()); err != nil {
		return fmt.Errorf("ledger.UpdateHoldTokenDailyRate: %w", err)
	}
	l.log.Info("daily rate updated",
		"sale", saleToken.Hex(),
		"hold", holdToken.Hex(),
		"rate_bp", rateBP,
	)
	return nil
}

// UpdateHoldTokenEntranceFee cambia el entrance fee del par dirigido. Sólo el
// operator. El centinela EntranceFeeDisabled lo desactiva; 0 vuelve al default.
func (l *Ledger) UpdateHoldTokenEntranceFee(caller, saleToken, holdToken common.Address, feeBP uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.operator {
		return fmt.Errorf("ledger.UpdateHoldTokenEntranceFee: %w", ErrOnlyOperator)
	}
	pair := domain.PairKey{SaleToken: saleToken, HoldToken: holdToken}
	if err := l.rates.updateEntranceFee(pair, feeBP, l.clock.Now()); err != nil {
		return fmt.Errorf("ledger.UpdateHoldTokenEntranceFee: %w", err)
	}
	return nil
}

// Owner devuelve el owner del protocolo.
func (l *Ledger) Owner() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// Operator devuelve el operator vigente.
func (l *Ledger) Operator() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operator
}
