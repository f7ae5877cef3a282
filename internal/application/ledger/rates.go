package ledger

// rates.go — registry de daily rates por par dirigido (saleToken, holdToken).
//
// El accrual se integra sobre un acumulador bps·segundo por par: en cada
// checkpoint se suma rate_vigente * segundos_transcurridos. Un cambio de rate
// a mitad de vida de una deuda queda así partido en dos segmentos, cada uno al
// rate que estaba activo — nunca se reaplica el rate nuevo retroactivamente.

import (
	"math/big"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// pairRate es el estado mutable de un par en el registry.
type pairRate struct {
	dailyRateBP    uint64
	entranceFeeBP  uint64 // 0 = default del protocolo, EntranceFeeDisabled = sin fee
	accRateSeconds *big.Int
	latestUpAt     int64
	totalBorrowed  *big.Int
}

// rateRegistry mantiene el estado por par. No lleva lock propio: vive dentro
// del ledger y hereda su disciplina single-writer.
type rateRegistry struct {
	pairs map[domain.PairKey]*pairRate
}

func newRateRegistry() *rateRegistry {
	return &rateRegistry{pairs: make(map[domain.PairKey]*pairRate)}
}

// ensure devuelve el estado del par, inicializándolo con los defaults del
// protocolo la primera vez que se toca.
func (r *rateRegistry) ensure(pair domain.PairKey, now int64) *pairRate {
	p, ok := r.pairs[pair]
	if !ok {
		p = &pairRate{
			dailyRateBP:    domain.DefaultDailyRateBP,
			accRateSeconds: new(big.Int),
			latestUpAt:     now,
			totalBorrowed:  new(big.Int),
		}
		r.pairs[pair] = p
	}
	return p
}

// accAt devuelve el valor del acumulador llevado hasta now, sin mutar estado.
func (p *pairRate) accAt(now int64) *big.Int {
	acc := new(big.Int).Set(p.accRateSeconds)
	if now > p.latestUpAt {
		elapsed := big.NewInt(now - p.latestUpAt)
		acc.Add(acc, elapsed.Mul(elapsed, new(big.Int).SetUint64(p.dailyRateBP)))
	}
	return acc
}

// checkpoint consolida el acumulador hasta now. Se llama justo antes de
// cualquier cambio de rate y en cada commit de operación que toque el par.
func (p *pairRate) checkpoint(now int64) {
	p.accRateSeconds = p.accAt(now)
	if now > p.latestUpAt {
		p.latestUpAt = now
	}
}

// entranceFee resuelve el centinela: 0 significa default, EntranceFeeDisabled
// significa sin fee.
func (p *pairRate) entranceFee() uint64 {
	switch p.entranceFeeBP {
	case 0:
		return domain.DefaultEntranceFeeBP
	case domain.EntranceFeeDisabled:
		return 0
	default:
		return p.entranceFeeBP
	}
}

// updateDailyRate cambia el rate del par. Rechaza cero, fuera de rango y
// escrituras redundantes (mismo valor). El acumulador se consolida al rate
// viejo antes de aplicar el nuevo.
func (r *rateRegistry) updateDailyRate(pair domain.PairKey, newRateBP uint64, now int64) error {
	if newRateBP < domain.MinDailyRateBP || newRateBP > domain.MaxDailyRateBP {
		return ErrInvalidDailyRate
	}
	p := r.ensure(pair, now)
	if p.dailyRateBP == newRateBP {
		return ErrInvalidDailyRate
	}
	p.checkpoint(now)
	p.dailyRateBP = newRateBP
	return nil
}

// updateEntranceFee cambia el entrance fee del par (o lo desactiva con el
// centinela EntranceFeeDisabled).
func (r *rateRegistry) updateEntranceFee(pair domain.PairKey, feeBP uint64, now int64) error {
	if feeBP > domain.MaxEntranceFeeBP && feeBP != domain.EntranceFeeDisabled {
		return ErrInvalidEntranceFee
	}
	p := r.ensure(pair, now)
	p.entranceFeeBP = feeBP
	return nil
}

// adjustTotalBorrowed suma (o resta, con delta negativo) al agregado prestado
// del par. Interno: sólo lo invoca el ledger al abrir/cerrar deuda.
func (p *pairRate) adjustTotalBorrowed(delta *big.Int) {
	p.totalBorrowed.Add(p.totalBorrowed, delta)
}

// view devuelve la proyección de consulta del par con el entrance fee resuelto.
func (r *rateRegistry) view(pair domain.PairKey, now int64) domain.PairRateView {
	p, ok := r.pairs[pair]
	if !ok {
		return domain.PairRateView{
			Pair:             pair,
			CurrentDailyRate: domain.DefaultDailyRateBP,
			EntranceFeeBP:    domain.DefaultEntranceFeeBP,
			TotalBorrowed:    new(big.Int),
		}
	}
	return domain.PairRateView{
		Pair:             pair,
		CurrentDailyRate: p.dailyRateBP,
		EntranceFeeBP:    p.entranceFee(),
		TotalBorrowed:    new(big.Int).Set(p.totalBorrowed),
	}
}
