package domain

// accrual.go — motor puro de accrual de colateral.
//
// Sin estado: todas las funciones son deterministas sobre sus argumentos.
// Convenciones de redondeo, siempre a favor del protocolo:
//   - las fees devengadas redondean hacia ARRIBA (el borrower nunca paga de menos),
//   - la parte de plataforma de un split redondea hacia ABAJO y el residuo va
//     íntegro a los lenders (ningún token se crea ni se destruye al repartir).

import "math/big"

// FeePerSecond no existe como función: el accrual se integra siempre sobre
// bps·segundo para soportar cambios de rate a mitad de vida en dos segmentos
// (el registry acumula rate*elapsed en cada checkpoint).

// AccruedFee devuelve la fee devengada, a precisión 1e18, por un principal
// borrowedAmount (unidades nativas) durante secondsElapsed a dailyRateBP:
//
//	ceil(borrowedAmount * dailyRateBP * secondsElapsed * 1e18 / (10000 * 86400))
func AccruedFee(borrowedAmount *big.Int, dailyRateBP uint64, secondsElapsed int64) *big.Int {
	if borrowedAmount == nil || borrowedAmount.Sign() <= 0 || dailyRateBP == 0 || secondsElapsed <= 0 {
		return new(big.Int)
	}
	rateSeconds := new(big.Int).Mul(
		new(big.Int).SetUint64(dailyRateBP),
		big.NewInt(secondsElapsed),
	)
	return AccruedFeeFromRateSeconds(borrowedAmount, rateSeconds)
}

// AccruedFeeFromRateSeconds es la forma integrada de AccruedFee: rateSeconds es
// la suma de dailyRateBP*elapsed por cada segmento de rate vigente (delta del
// acumulador del pair desde el último checkpoint de la deuda).
func AccruedFeeFromRateSeconds(borrowedAmount, rateSeconds *big.Int) *big.Int {
	if borrowedAmount == nil || borrowedAmount.Sign() <= 0 || rateSeconds == nil || rateSeconds.Sign() <= 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(borrowedAmount, rateSeconds)
	num.Mul(num, CollateralPrecision)
	return ceilDiv(num, rateDenom)
}

// AccruedCollateral devuelve el balance vivo de colateral (1e18, firmado):
// el colateral del último checkpoint menos lo devengado desde entonces.
// Puede ser negativo y seguir decreciendo — ésa es la señal de liquidación.
func AccruedCollateral(collateralBalance, borrowedAmount *big.Int, dailyRateBP uint64, secondsElapsed int64) *big.Int {
	return new(big.Int).Sub(collateralBalance, AccruedFee(borrowedAmount, dailyRateBP, secondsElapsed))
}

// EstimatedLifetimeSeconds estima cuántos segundos faltan para que el balance
// llegue a cero al rate actual. División entera hacia abajo; 0 si el balance
// ya es no-positivo o no hay deuda.
func EstimatedLifetimeSeconds(collateralBalance, borrowedAmount *big.Int, dailyRateBP uint64) int64 {
	if collateralBalance == nil || collateralBalance.Sign() <= 0 {
		return 0
	}
	if borrowedAmount == nil || borrowedAmount.Sign() <= 0 || dailyRateBP == 0 {
		return 0
	}
	// balance * 10000 * 86400 / (borrowed * rate * 1e18)
	num := new(big.Int).Mul(collateralBalance, rateDenom)
	den := new(big.Int).Mul(borrowedAmount, new(big.Int).SetUint64(dailyRateBP))
	den.Mul(den, CollateralPrecision)
	return new(big.Int).Quo(num, den).Int64()
}

// DailyCollateral devuelve el colateral equivalente a un día entero de accrual
// (1e18): es el depósito inicial exigido al abrir un borrow.
func DailyCollateral(borrowedAmount *big.Int, dailyRateBP uint64) *big.Int {
	return AccruedFee(borrowedAmount, dailyRateBP, SecondsPerDay)
}

// SplitFees reparte una fee total entre lenders y plataforma. La parte de
// plataforma trunca hacia abajo y el resto es de los lenders, de modo que
// lenderShare + platformShare == total siempre, sin pérdida por redondeo.
func SplitFees(total *big.Int, platformFeesBP uint64) (lenderShare, platformShare *big.Int) {
	if total == nil || total.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	platformShare = new(big.Int).Mul(total, new(big.Int).SetUint64(platformFeesBP))
	platformShare.Quo(platformShare, bpsBig)
	lenderShare = new(big.Int).Sub(total, platformShare)
	return lenderShare, platformShare
}

// FeeByBPRoundUp devuelve amount*bp/10000 redondeando hacia arriba. Se usa
// para cargos al borrower (entrance fee) donde el redondeo favorece al protocolo.
func FeeByBPRoundUp(amount *big.Int, bp uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bp == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(amount, new(big.Int).SetUint64(bp))
	return ceilDiv(num, bpsBig)
}

// Normalize lleva un importe en unidades nativas a precisión 1e18.
func Normalize(amount *big.Int) *big.Int {
	return new(big.Int).Mul(amount, CollateralPrecision)
}

// Denormalize baja un importe 1e18 a unidades nativas truncando (a favor del
// protocolo cuando lo que se paga sale de la vault).
func Denormalize(amount *big.Int) *big.Int {
	return new(big.Int).Quo(amount, CollateralPrecision)
}

// DenormalizeRoundUp baja un importe 1e18 a unidades nativas redondeando hacia
// arriba (a favor del protocolo cuando es un cargo que entra).
func DenormalizeRoundUp(amount *big.Int) *big.Int {
	if amount.Sign() <= 0 {
		return new(big.Int)
	}
	return ceilDiv(new(big.Int).Set(amount), CollateralPrecision)
}

// ceilDiv divide num/den redondeando hacia arriba. Asume den > 0.
func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
