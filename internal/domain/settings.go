package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SettingsItem enumera los parámetros de protocolo configurables por el owner.
type SettingsItem uint8

const (
	SettingPlatformFees SettingsItem = iota
	SettingDefaultLiquidationBonus
	SettingOperator
	SettingTokenLiquidationBonus
	SettingFlashLoanAggregator
	SettingLightQuoter
	SettingVaultFlashFee
)

// SettingsUpdate es el payload de un cambio de settings. Cada item consume un
// subconjunto de campos; los campos sobrantes deben ir a cero o el update entero
// se rechaza, no hay aplicación parcial.
type SettingsUpdate struct {
	Item SettingsItem

	// BP lleva el valor en basis points para los items de ratio.
	BP uint64
	// Address lleva operator, aggregator o quoter.
	Address common.Address
	// Token y MinAmount llevan los overrides por token (bonus, flash fee).
	Token     common.Address
	MinAmount *big.Int
}

// TokenBonus es el override de bonus de liquidación para un token concreto:
// ratio propio y un suelo absoluto por loan.
type TokenBonus struct {
	BonusBP        uint64
	MinBonusAmount *big.Int
}
