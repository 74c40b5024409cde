package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultF1Deterministic(t *testing.T) {
	var id [32]byte
	for i := range id {
		id[i] = byte(i)
	}
	g := NewDefaultF1(id, 20, 6)
	a := g.F1(12345)
	b := g.F1(12345)
	require.Equal(t, a, b)
	require.Less(t, a, uint64(1)<<26)
}

func TestDefaultF1VariesWithX(t *testing.T) {
	var id [32]byte
	g := NewDefaultF1(id, 20, 6)
	seen := map[uint64]bool{}
	for x := uint64(0); x < 1000; x++ {
		seen[g.F1(x)] = true
	}
	require.Greater(t, len(seen), 900)
}

func TestDefaultMatcherFindsSomeMatches(t *testing.T) {
	m := DefaultMatcher{}
	found := 0
	for yL := uint64(0); yL < 2000; yL++ {
		for d := int64(-5); d <= 5; d++ {
			yR := uint64(int64(yL) + d)
			if m.Matches(yL, yR) {
				found++
			}
		}
	}
	require.Greater(t, found, 0)
}

func TestDefaultMatcherComputeFxDeterministic(t *testing.T) {
	m := DefaultMatcher{}
	f1, meta1 := m.ComputeFx(2, 42, nil, nil, 20)
	f2, meta2 := m.ComputeFx(2, 42, nil, nil, 20)
	require.Equal(t, f1, f2)
	require.Equal(t, 0, meta1.Cmp(meta2))
}
