package ledger

// loans.go — agregador de loans: la relación muchos-a-muchos entre deudas
// (borrowing keys) y créditos de lenders (posiciones NFT). Una deuda puede
// drenar liquidez de varias posiciones; una posición puede respaldar varias
// deudas, pero nunca comprometer más liquidez de la que posee.

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// loanBook mantiene los dos índices del agregado. Sin lock propio: hereda la
// disciplina single-writer del ledger.
type loanBook struct {
	// loansByKey: deuda → loans que la respaldan.
	loansByKey map[domain.BorrowingKey][]domain.LoanInfo
	// keysByToken: posición → deudas que drenan de ella (índice inverso, le
	// permite a un lender enumerar toda su exposición).
	keysByToken map[uint64]map[domain.BorrowingKey]struct{}
	// keysByBorrower: borrower → sus deudas vivas.
	keysByBorrower map[common.Address]map[domain.BorrowingKey]struct{}
}

func newLoanBook() *loanBook {
	return &loanBook{
		loansByKey:     make(map[domain.BorrowingKey][]domain.LoanInfo),
		keysByToken:    make(map[uint64]map[domain.BorrowingKey]struct{}),
		keysByBorrower: make(map[common.Address]map[domain.BorrowingKey]struct{}),
	}
}

// add concatena loans nuevos bajo la key: la liquidez de loans contra el mismo
// tokenId se suma en un único registro en lugar de duplicar entradas.
func (b *loanBook) add(key domain.BorrowingKey, borrower common.Address, loans []domain.LoanInfo) {
	existing := b.loansByKey[key]
	for _, nl := range loans {
		merged := false
		for i := range existing {
			if existing[i].TokenID == nl.TokenID {
				existing[i].Liquidity = new(big.Int).Add(existing[i].Liquidity, nl.Liquidity)
				merged = true
				break
			}
		}
		if !merged {
			existing = append(existing, nl.Clone())
		}
		if b.keysByToken[nl.TokenID] == nil {
			b.keysByToken[nl.TokenID] = make(map[domain.BorrowingKey]struct{})
		}
		b.keysByToken[nl.TokenID][key] = struct{}{}
	}
	b.loansByKey[key] = existing

	if b.keysByBorrower[borrower] == nil {
		b.keysByBorrower[borrower] = make(map[domain.BorrowingKey]struct{})
	}
	b.keysByBorrower[borrower][key] = struct{}{}
}

// loans devuelve los loans vivos de una deuda (copia defensiva).
func (b *loanBook) loans(key domain.BorrowingKey) []domain.LoanInfo {
	src := b.loansByKey[key]
	out := make([]domain.LoanInfo, len(src))
	for i, l := range src {
		out[i] = l.Clone()
	}
	return out
}

// totalLiquidity suma la liquidez comprometida bajo una key.
func (b *loanBook) totalLiquidity(key domain.BorrowingKey) *big.Int {
	total := new(big.Int)
	for _, l := range b.loansByKey[key] {
		total.Add(total, l.Liquidity)
	}
	return total
}

// committedFor devuelve la liquidez total que una posición tiene comprometida
// entre todas las deudas que respalda.
func (b *loanBook) committedFor(tokenID uint64) *big.Int {
	total := new(big.Int)
	for key := range b.keysByToken[tokenID] {
		for _, l := range b.loansByKey[key] {
			if l.TokenID == tokenID {
				total.Add(total, l.Liquidity)
			}
		}
	}
	return total
}

// removeLoan elimina el loan de una posición concreta bajo la key. Devuelve el
// loan eliminado y si quedaba registrado.
func (b *loanBook) removeLoan(key domain.BorrowingKey, tokenID uint64) (domain.LoanInfo, bool) {
	loans := b.loansByKey[key]
	for i, l := range loans {
		if l.TokenID != tokenID {
			continue
		}
		b.loansByKey[key] = append(loans[:i], loans[i+1:]...)
		if keys := b.keysByToken[tokenID]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(b.keysByToken, tokenID)
			}
		}
		return l, true
	}
	return domain.LoanInfo{}, false
}

// reduceLoans encoge proporcionalmente cada loan de la key por la fracción
// num/den. Los loans que llegan a cero se eliminan junto con su índice inverso.
func (b *loanBook) reduceLoans(key domain.BorrowingKey, num, den *big.Int) {
	loans := b.loansByKey[key]
	kept := loans[:0]
	for _, l := range loans {
		reduced := new(big.Int).Mul(l.Liquidity, num)
		reduced.Quo(reduced, den)
		remaining := new(big.Int).Sub(l.Liquidity, reduced)
		if remaining.Sign() > 0 {
			l.Liquidity = remaining
			kept = append(kept, l)
			continue
		}
		if keys := b.keysByToken[l.TokenID]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(b.keysByToken, l.TokenID)
			}
		}
	}
	if len(kept) == 0 {
		delete(b.loansByKey, key)
		return
	}
	b.loansByKey[key] = kept
}

// removeDebt borra la deuda entera de ambos índices.
func (b *loanBook) removeDebt(key domain.BorrowingKey, borrower common.Address) {
	for _, l := range b.loansByKey[key] {
		if keys := b.keysByToken[l.TokenID]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(b.keysByToken, l.TokenID)
			}
		}
	}
	delete(b.loansByKey, key)
	if keys := b.keysByBorrower[borrower]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(b.keysByBorrower, borrower)
		}
	}
}

// keysForToken devuelve las deudas que drenan de una posición.
func (b *loanBook) keysForToken(tokenID uint64) []domain.BorrowingKey {
	out := make([]domain.BorrowingKey, 0, len(b.keysByToken[tokenID]))
	for key := range b.keysByToken[tokenID] {
		out = append(out, key)
	}
	return out
}

// keysForBorrower devuelve las deudas vivas de un borrower.
func (b *loanBook) keysForBorrower(borrower common.Address) []domain.BorrowingKey {
	out := make([]domain.BorrowingKey, 0, len(b.keysByBorrower[borrower]))
	for key := range b.keysByBorrower[borrower] {
		out = append(out, key)
	}
	return out
}
