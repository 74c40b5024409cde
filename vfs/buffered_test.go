package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/retry"
)

func newTestBuffered(readAhead, writeCache uint64) (*FileDisk, *Buffered) {
	fs := NewMem()
	raw := NewFileDisk(fs, "plot.tmp", base.NoopLogger{}, retry.NewTestPolicy(time.Millisecond, func(time.Duration) {}), true)
	return raw, NewBuffered(raw, 0, readAhead, writeCache, base.NoopLogger{})
}

func TestBufferedSequentialReadWrite(t *testing.T) {
	_, buf := newTestBuffered(64, 32)

	require.NoError(t, buf.Write(0, []byte("abcd")))
	require.NoError(t, buf.Write(4, []byte("efgh")))
	require.NoError(t, buf.FlushWrite())

	got, err := buf.Read(0, 8)
	require.NoError(t, err)
	require.Equal(t, "abcdefgh", string(got))
}

func TestBufferedWriteFlushesOnNonContiguous(t *testing.T) {
	_, buf := newTestBuffered(64, 16)

	require.NoError(t, buf.Write(0, []byte("AAAA")))
	require.NoError(t, buf.Write(100, []byte("BBBB"))) // non-contiguous, forces flush
	require.NoError(t, buf.FlushWrite())

	got, err := buf.Read(0, 4)
	require.NoError(t, err)
	require.Equal(t, "AAAA", string(got))

	got, err = buf.Read(100, 4)
	require.NoError(t, err)
	require.Equal(t, "BBBB", string(got))
}

func TestBufferedBackwardReadBypassesCache(t *testing.T) {
	_, buf := newTestBuffered(8, 32)

	require.NoError(t, buf.Write(0, []byte("0123456789ABCDEF")))
	require.NoError(t, buf.FlushWrite())

	_, err := buf.Read(10, 4) // seeds the read-ahead window starting at 10
	require.NoError(t, err)

	got, err := buf.Read(0, 4) // backward relative to the cached window
	require.NoError(t, err)
	require.Equal(t, "0123", string(got))
}
