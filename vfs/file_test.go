package vfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/retry"
)

func testPolicy() *retry.Policy {
	return retry.NewTestPolicy(time.Millisecond, func(time.Duration) {})
}

func TestFileDiskReadWrite(t *testing.T) {
	fs := NewMem()
	disk := NewFileDisk(fs, "plot.tmp", base.NoopLogger{}, testPolicy(), true)

	require.NoError(t, disk.Write(0, []byte("hello world")))
	got, err := disk.Read(0, 11)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	require.NoError(t, disk.Write(6, []byte("WORLD")))
	got, err = disk.Read(0, 11)
	require.NoError(t, err)
	require.Equal(t, "hello WORLD", string(got))

	require.Equal(t, "plot.tmp", disk.FileName())
}

func TestFileDiskTruncateReopens(t *testing.T) {
	fs := NewMem()
	disk := NewFileDisk(fs, "plot.tmp", base.NoopLogger{}, testPolicy(), true)
	require.NoError(t, disk.Write(0, []byte("0123456789")))
	require.NoError(t, disk.Truncate(4))

	got, err := disk.Read(0, 4)
	require.NoError(t, err)
	require.Equal(t, "0123", string(got))
}

func TestFileDiskOpensWithoutRetry(t *testing.T) {
	fs := NewMem()
	// With retryOpen false the open is attempted once, outside the retry
	// policy; on an existing file it succeeds and the write goes through.
	_, err := fs.Create("plot.tmp")
	require.NoError(t, err)
	disk := NewFileDisk(fs, "plot.tmp", base.NoopLogger{}, testPolicy(), false)
	require.NoError(t, disk.Write(0, []byte("x")))
}
