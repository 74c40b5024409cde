package table

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinePointRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const n = 1 << 20
	for i := 0; i < 2000; i++ {
		x := rng.Uint64() % n
		y := rng.Uint64() % n
		lp := LinePoint(x, y)
		gx, gy := InverseLinePoint(lp)
		wantX, wantY := x, y
		if wantX > wantY {
			wantX, wantY = wantY, wantX
		}
		require.Equal(t, wantX, gx, "x for lp=%v (in x=%d y=%d)", lp, x, y)
		require.Equal(t, wantY, gy, "y for lp=%v (in x=%d y=%d)", lp, x, y)
	}
}

func TestLinePointMonotone(t *testing.T) {
	lpPrev := LinePoint(0, 1)
	for y := uint64(1); y < 200; y++ {
		for x := uint64(0); x <= y; x++ {
			lp := LinePoint(x, y)
			require.True(t, lp.Cmp(lpPrev) >= 0, "lp(%d,%d)=%v should be >= previous %v", x, y, lp, lpPrev)
			lpPrev = lp
		}
	}
}
