package bitpack

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterRoundTripUint64(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := NewWriter()
	type entry struct {
		value uint64
		width uint32
		start uint64
	}
	var entries []entry
	for i := 0; i < 500; i++ {
		width := uint32(1 + rng.Intn(64))
		var value uint64
		if width == 64 {
			value = rng.Uint64()
		} else {
			value = rng.Uint64() & (uint64(1)<<width - 1)
		}
		entries = append(entries, entry{value: value, width: width, start: w.BitLen()})
		w.WriteUint64(value, width)
	}

	buf := w.PaddedBytes()
	for _, e := range entries {
		got := SliceUint64(buf, uint32(e.start), e.width)
		require.Equal(t, e.value, got, "width=%d start=%d", e.width, e.start)
	}
}

func TestWriterRoundTripBig(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	w := NewWriter()
	type entry struct {
		value *big.Int
		width uint32
		start uint64
	}
	var entries []entry
	for i := 0; i < 200; i++ {
		width := uint32(1 + rng.Intn(128))
		max := new(big.Int).Lsh(big.NewInt(1), uint(width))
		value := new(big.Int).Rand(rng, max)
		entries = append(entries, entry{value: value, width: width, start: w.BitLen()})
		w.WriteBig(value, width)
	}

	buf := w.PaddedBytes()
	for _, e := range entries {
		got := SliceBig(buf, uint32(e.start), e.width)
		require.Equal(t, 0, e.value.Cmp(got), "width=%d start=%d want=%s got=%s", e.width, e.start, e.value, got)
	}
}

func TestPadToByte(t *testing.T) {
	w := NewWriter()
	w.WriteUint64(0b101, 3)
	w.PadToByte()
	require.EqualValues(t, 8, w.BitLen())
	w.WriteUint64(0xFF, 8)
	require.Equal(t, []byte{0b10100000, 0xFF}, w.Bytes())
}

func TestPad(t *testing.T) {
	tight := []byte{0xFF, 0xAB}
	padded := Pad(tight)
	require.Len(t, padded, len(tight)+TailPadding)
	require.Equal(t, tight, padded[:len(tight)])
	got := SliceUint64(padded, 0, 16)
	require.EqualValues(t, 0xFFAB, got)
}

func TestByteLen(t *testing.T) {
	require.Equal(t, 0, ByteLen(0))
	require.Equal(t, 1, ByteLen(1))
	require.Equal(t, 1, ByteLen(8))
	require.Equal(t, 2, ByteLen(9))
	require.Equal(t, 13, PaddedByteLen(8*6))
}
