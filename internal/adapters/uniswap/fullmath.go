package uniswap

import (
	ui "github.com/holiman/uint256"
)

var (
	one  = new(ui.Int).SetOne()
	q96  = new(ui.Int).Lsh(one, 96)
	e6   = ui.NewInt(1_000_000)
	zero = new(ui.Int)

	maxUint256 = new(ui.Int).Not(zero)
	maxUint160 = new(ui.Int).Sub(new(ui.Int).Lsh(one, 160), one)
)

func mulDiv(a, b, denominator *ui.Int) *ui.Int {
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		panic("uniswap: mulDiv overflow")
	}
	return result
}

func mulDivRoundingUp(a, b, denominator *ui.Int) *ui.Int {
	if a.IsZero() || b.IsZero() {
		return ui.NewInt(0)
	}
	result := mulDiv(a, b, denominator)
	rem := new(ui.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		result.Add(result, one)
	}
	return result
}

func divRoundingUp(a, b *ui.Int) *ui.Int {
	q := new(ui.Int).Div(a, b)
	if !new(ui.Int).Mod(a, b).IsZero() {
		q.Add(q, one)
	}
	return q
}
