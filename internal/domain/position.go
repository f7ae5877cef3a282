package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionInfo es la vista que el ledger necesita de una posición NFT de
// liquidez concentrada: el pool al que pertenece y cuánta liquidez posee.
// El ledger confía en la contabilidad de liquidez del position manager.
type PositionInfo struct {
	TokenID   uint64
	Owner     common.Address
	Token0    common.Address
	Token1    common.Address
	FeeTier   uint32
	Liquidity *big.Int
}

// SamePool indica si dos posiciones pertenecen al mismo pool
// (mismo par de tokens y mismo fee tier).
func (p PositionInfo) SamePool(o PositionInfo) bool {
	return p.Token0 == o.Token0 && p.Token1 == o.Token1 && p.FeeTier == o.FeeTier
}

// HoldsPair indica si la posición contiene exactamente el par (a, b),
// en cualquier orden.
func (p PositionInfo) HoldsPair(a, b common.Address) bool {
	return (p.Token0 == a && p.Token1 == b) || (p.Token0 == b && p.Token1 == a)
}
