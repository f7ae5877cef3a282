package ledger

// vault.go — custodia pasiva de tokens. Toda entrada/salida de principal,
// colateral, bonus y fees pasa por aquí; la única vía de mutación es el propio
// ledger dentro de una operación. No hay otra puerta.

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

type vault struct {
	balances map[common.Address]*big.Int
	// flashFeeBP: fee por token para los flash loans servidos desde la vault
	// (settings item 6).
	flashFeeBP map[common.Address]uint64
}

func newVault() *vault {
	return &vault{
		balances:   make(map[common.Address]*big.Int),
		flashFeeBP: make(map[common.Address]uint64),
	}
}

// deposit ingresa amount del token. Importes no positivos se ignoran.
func (v *vault) deposit(token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if v.balances[token] == nil {
		v.balances[token] = new(big.Int)
	}
	v.balances[token].Add(v.balances[token], amount)
}

// withdraw retira amount del token; falla si el balance no alcanza.
func (v *vault) withdraw(token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	bal := v.balances[token]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrVaultInsufficientFunds
	}
	bal.Sub(bal, amount)
	return nil
}

// balance devuelve el balance custodiado del token.
func (v *vault) balance(token common.Address) *big.Int {
	if b := v.balances[token]; b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// snapshot devuelve los balances con saldo, ordenados para reporting.
func (v *vault) snapshot() []domain.VaultBalance {
	var out []domain.VaultBalance
	for token, amount := range v.balances {
		if amount.Sign() > 0 {
			out = append(out, domain.VaultBalance{Token: token, Amount: new(big.Int).Set(amount)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.Hex() < out[j].Token.Hex() })
	return out
}
