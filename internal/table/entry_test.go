package table

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/bitpack"
)

func TestTable1EntryRoundTrip(t *testing.T) {
	const k = 20
	rng := rand.New(rand.NewSource(11))
	w := bitpack.NewWriter()
	var entries []Table1Entry
	for i := 0; i < 100; i++ {
		e := Table1Entry{F1: rng.Uint64() & (1<<(k+KExtraBits) - 1), X: rng.Uint64() & (1<<k - 1)}
		entries = append(entries, e)
		e.Pack(w, k)
	}
	buf := w.PaddedBytes()
	bits := Table1EntryBits(k)
	for i, want := range entries {
		got := UnpackTable1Entry(buf, uint32(i)*bits, k)
		require.Equal(t, want, got, "entry %d", i)
	}
}

func TestMatchEntryRoundTrip(t *testing.T) {
	const k = 18
	rng := rand.New(rand.NewSource(12))
	for _, tbl := range []uint8{2, 3, 4, 5, 6} {
		w := bitpack.NewWriter()
		var entries []MatchEntry
		for i := 0; i < 50; i++ {
			metaBits := uint32(k) * KVectorLens[tbl+1]
			meta := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), uint(metaBits)))
			e := MatchEntry{
				F:        rng.Uint64() & (1<<(k+KExtraBits) - 1),
				Pos:      rng.Uint64() & (1<<k - 1),
				Offset:   rng.Uint64() & (1<<KOffsetSize - 1),
				Metadata: meta,
			}
			entries = append(entries, e)
			e.Pack(w, k, tbl)
		}
		buf := w.PaddedBytes()
		bits := MatchEntryBits(k, tbl)
		for i, want := range entries {
			got := UnpackMatchEntry(buf, uint32(i)*bits, k, tbl)
			require.Equal(t, want.F, got.F, "table %d entry %d F", tbl, i)
			require.Equal(t, want.Pos, got.Pos, "table %d entry %d Pos", tbl, i)
			require.Equal(t, want.Offset, got.Offset, "table %d entry %d Offset", tbl, i)
			require.Equal(t, 0, want.Metadata.Cmp(got.Metadata), "table %d entry %d Metadata", tbl, i)
		}
	}
}

func TestTable7EntryRoundTrip(t *testing.T) {
	const k = 22
	rng := rand.New(rand.NewSource(13))
	w := bitpack.NewWriter()
	var entries []Table7Entry
	maxLP := new(big.Int).Lsh(big.NewInt(1), uint(2*k))
	for i := 0; i < 50; i++ {
		e := Table7Entry{
			LinePoint: new(big.Int).Rand(rng, maxLP),
			F7:        rng.Uint64() & (1<<(k-1) - 1),
		}
		entries = append(entries, e)
		e.Pack(w, k)
	}
	buf := w.PaddedBytes()
	bits := Table7EntryBits(k)
	for i, want := range entries {
		got := UnpackTable7Entry(buf, uint32(i)*bits, k)
		require.Equal(t, 0, want.LinePoint.Cmp(got.LinePoint), "entry %d LinePoint", i)
		require.Equal(t, want.F7, got.F7, "entry %d F7", i)
	}
}

func TestKeyPosOffsetEntryRoundTrip(t *testing.T) {
	const k = 24
	rng := rand.New(rand.NewSource(14))
	w := bitpack.NewWriter()
	var entries []KeyPosOffsetEntry
	for i := 0; i < 80; i++ {
		e := KeyPosOffsetEntry{
			SortKey: rng.Uint64() & (1<<k - 1),
			Pos:     rng.Uint64() & (1<<k - 1),
			Offset:  rng.Uint64() & (1<<KOffsetSize - 1),
		}
		entries = append(entries, e)
		e.Pack(w, k)
	}
	buf := w.PaddedBytes()
	bits := KeyPosOffsetBits(k)
	for i, want := range entries {
		got := UnpackKeyPosOffsetEntry(buf, uint32(i)*bits, k)
		require.Equal(t, want, got, "entry %d", i)
	}
}

func TestRenumberEntryRoundTrip(t *testing.T) {
	const k = 19
	rng := rand.New(rand.NewSource(15))
	w := bitpack.NewWriter()
	var entries []RenumberEntry
	for i := 0; i < 80; i++ {
		e := RenumberEntry{OldSortKey: rng.Uint64() & (1<<k - 1), NewSortKey: rng.Uint64() & (1<<k - 1)}
		entries = append(entries, e)
		e.Pack(w, k)
	}
	buf := w.PaddedBytes()
	bits := RenumberEntryBits(k)
	for i, want := range entries {
		got := UnpackRenumberEntry(buf, uint32(i)*bits, k)
		require.Equal(t, want, got, "entry %d", i)
	}
}
