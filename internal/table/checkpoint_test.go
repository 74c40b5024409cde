package table

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestC1RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	k := uint8(32)
	f7s := make([]uint64, 50)
	for i := range f7s {
		f7s[i] = rng.Uint64() % (1 << k)
	}
	buf := EncodeC1(k, f7s)
	got := DecodeC1(buf, k, len(f7s))
	require.Equal(t, f7s, got)
}

func TestC2RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	k := uint8(28)
	c1s := make([]uint64, 17)
	for i := range c1s {
		c1s[i] = rng.Uint64() % (1 << k)
	}
	buf := EncodeC2(k, c1s)
	got := DecodeC2(buf, k, len(c1s))
	require.Equal(t, c1s, got)
}

func TestC3ParkRoundTripSparseDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	for _, k := range []uint8{18, 19, 20, 32} {
		n := KCheckpoint1Interval - 1
		deltas := make([]uint64, n)
		for i := range deltas {
			// Matches design's "each >= 0, usually 0 or 1" expectation with
			// an occasional larger gap.
			switch {
			case rng.Float64() < 0.6:
				deltas[i] = 0
			case rng.Float64() < 0.9:
				deltas[i] = 1
			default:
				deltas[i] = uint64(rng.Intn(5) + 2)
			}
		}

		buf, err := EncodeC3Park(k, deltas)
		require.NoError(t, err)
		require.EqualValues(t, CalculateC3Size(k), len(buf))

		got := DecodeC3Park(buf, n)
		require.Equal(t, deltas, got)
	}
}

func TestC3ParkRejectsOversizedDeltas(t *testing.T) {
	n := KCheckpoint1Interval - 1
	deltas := make([]uint64, n)
	for i := range deltas {
		deltas[i] = uint64(1) << 40 // wildly exceeds the C3 budget
	}
	_, err := EncodeC3Park(18, deltas)
	require.Error(t, err)
}
