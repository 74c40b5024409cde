package table

import "math/big"

// LinePoint computes C(y,2) + x = y*(y-1)/2 + x for the unordered pair
// {x, y}; x and y are swapped if x > y. Over pairs with x < y this is a
// bijection from unordered pairs of integers in [0, N) onto [0, C(N,2)),
// the encoding phase 3 sorts on instead of the (pos, offset) back-pointer
// pair it replaces (design §4.6, §8 invariant 1); a pair with x == y gives
// the same value as (0, y+1). Results can need up to 2k bits for k up to
// KMaxPlotSize, which overflows uint64, hence math/big.
func LinePoint(x, y uint64) *big.Int {
	if x > y {
		x, y = y, x
	}
	by := new(big.Int).SetUint64(y)
	// y*(y-1)/2
	ym1 := new(big.Int).Sub(by, big.NewInt(1))
	prod := new(big.Int).Mul(by, ym1)
	prod.Rsh(prod, 1)
	return prod.Add(prod, new(big.Int).SetUint64(x))
}

// InverseLinePoint recovers the unordered pair {x, y} (x < y) that
// produced lp via LinePoint. It inverts y*(y-1)/2 + x = lp by solving for
// the largest y such that C(y,2) <= lp, via y = floor((1+sqrt(1+8*lp))/2),
// computed with big.Int.Sqrt and then adjusted by at most one step for
// rounding.
func InverseLinePoint(lp *big.Int) (x, y uint64) {
	// 1 + 8*lp
	inner := new(big.Int).Lsh(lp, 3)
	inner.Add(inner, big.NewInt(1))
	sq := new(big.Int).Sqrt(inner)
	// y = floor((1 + sq) / 2)
	yBig := new(big.Int).Add(sq, big.NewInt(1))
	yBig.Rsh(yBig, 1)

	// Correct for integer-sqrt rounding: C(y,2) must be <= lp < C(y+1,2).
	for triangular(yBig).Cmp(lp) > 0 {
		yBig.Sub(yBig, big.NewInt(1))
	}
	for triangular(new(big.Int).Add(yBig, big.NewInt(1))).Cmp(lp) <= 0 {
		yBig.Add(yBig, big.NewInt(1))
	}

	xBig := new(big.Int).Sub(lp, triangular(yBig))
	return xBig.Uint64(), yBig.Uint64()
}

// triangular returns y*(y-1)/2.
func triangular(y *big.Int) *big.Int {
	ym1 := new(big.Int).Sub(y, big.NewInt(1))
	t := new(big.Int).Mul(y, ym1)
	return t.Rsh(t, 1)
}
