package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BorrowingKey identifica de forma determinista la deuda de un borrower sobre
// un par dirigido (saleToken, holdToken). Volver a pedir prestado sobre el
// mismo par NO crea una deuda nueva: se fusiona bajo la misma key.
type BorrowingKey = common.Hash

// ComputeBorrowingKey deriva la key como keccak256(borrower ‖ saleToken ‖ holdToken).
func ComputeBorrowingKey(borrower, saleToken, holdToken common.Address) BorrowingKey {
	return crypto.Keccak256Hash(borrower.Bytes(), saleToken.Bytes(), holdToken.Bytes())
}

// PairKey identifica un par dirigido de tokens. La dirección importa:
// (WETH→WBTC) y (WBTC→WETH) llevan rates y acumuladores independientes.
type PairKey struct {
	SaleToken common.Address
	HoldToken common.Address
}
