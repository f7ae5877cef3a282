package ledger

// fees.go — contabilidad de fees acumuladas: un bucket por (lender, token) y
// un bucket de plataforma por token, ambos a precisión 1e18. Invariante: la
// suma de todos los buckets más el balance disponible de la vault iguala el
// balance total custodiado — el reparto nunca crea ni destruye tokens, sólo
// los mueve entre reclamaciones.

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

type feeBank struct {
	// lenders: holder → token → acumulado 1e18.
	lenders map[common.Address]map[common.Address]*big.Int
	// platform: token → acumulado 1e18.
	platform map[common.Address]*big.Int
}

func newFeeBank() *feeBank {
	return &feeBank{
		lenders:  make(map[common.Address]map[common.Address]*big.Int),
		platform: make(map[common.Address]*big.Int),
	}
}

// creditLender suma amount (1e18) al bucket del holder para el token.
func (f *feeBank) creditLender(holder, token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	buckets := f.lenders[holder]
	if buckets == nil {
		buckets = make(map[common.Address]*big.Int)
		f.lenders[holder] = buckets
	}
	if buckets[token] == nil {
		buckets[token] = new(big.Int)
	}
	buckets[token].Add(buckets[token], amount)
}

// creditPlatform suma amount (1e18) al bucket de plataforma del token.
func (f *feeBank) creditPlatform(token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if f.platform[token] == nil {
		f.platform[token] = new(big.Int)
	}
	f.platform[token].Add(f.platform[token], amount)
}

// lenderBalance devuelve el acumulado (1e18) del holder para el token.
func (f *feeBank) lenderBalance(holder, token common.Address) *big.Int {
	if b := f.lenders[holder][token]; b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// platformBalance devuelve el acumulado (1e18) de plataforma para el token.
func (f *feeBank) platformBalance(token common.Address) *big.Int {
	if b := f.platform[token]; b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// drainLender vacía el bucket del holder para el token y devuelve lo drenado
// en unidades nativas (el resto sub-1e18 se queda en el bucket: no se pierde,
// se acumula para la próxima retirada).
func (f *feeBank) drainLender(holder, token common.Address) *big.Int {
	bucket := f.lenders[holder][token]
	if bucket == nil || bucket.Sign() <= 0 {
		return new(big.Int)
	}
	native := domain.Denormalize(bucket)
	bucket.Sub(bucket, domain.Normalize(native))
	return native
}

// drainPlatform vacía el bucket de plataforma del token, en unidades nativas.
func (f *feeBank) drainPlatform(token common.Address) *big.Int {
	bucket := f.platform[token]
	if bucket == nil || bucket.Sign() <= 0 {
		return new(big.Int)
	}
	native := domain.Denormalize(bucket)
	bucket.Sub(bucket, domain.Normalize(native))
	return native
}

// snapshotLenders devuelve todos los buckets de lenders con saldo, ordenados
// de forma estable para reporting.
func (f *feeBank) snapshotLenders() []domain.FeeBalance {
	var out []domain.FeeBalance
	for holder, buckets := range f.lenders {
		for token, amount := range buckets {
			if amount.Sign() > 0 {
				out = append(out, domain.FeeBalance{
					Holder: holder,
					Token:  token,
					Amount: new(big.Int).Set(amount),
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Holder != out[j].Holder {
			return out[i].Holder.Hex() < out[j].Holder.Hex()
		}
		return out[i].Token.Hex() < out[j].Token.Hex()
	})
	return out
}

// snapshotPlatform devuelve los buckets de plataforma con saldo.
func (f *feeBank) snapshotPlatform() []domain.FeeBalance {
	var out []domain.FeeBalance
	for token, amount := range f.platform {
		if amount.Sign() > 0 {
			out = append(out, domain.FeeBalance{Token: token, Amount: new(big.Int).Set(amount)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.Hex() < out[j].Token.Hex() })
	return out
}
