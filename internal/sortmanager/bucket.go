package sortmanager

import (
	"github.com/xdustinface/chiapos/internal/base"
	"github.com/xdustinface/chiapos/internal/retry"
	"github.com/xdustinface/chiapos/vfs"
)

// bucket owns one on-disk scratch file plus the in-memory write cache that
// coalesces AddEntry calls before they hit disk, mirroring sort_manager.hpp's
// bucket_t (a FileDisk plus a BufferedDisk view over it).
type bucket struct {
	raw      *vfs.FileDisk
	buffered *vfs.Buffered

	writeCache []byte // coalescing buffer, flushed when full
	writePtr   uint64 // bytes committed to disk so far
}

func newBucket(fs vfs.FS, filename string, logger base.Logger, policy *retry.Policy, cacheSize uint64) *bucket {
	raw := vfs.NewFileDisk(fs, filename, logger, policy, true)
	return &bucket{
		raw:      raw,
		buffered: vfs.NewBuffered(raw, 0, cacheSize, cacheSize, logger),
	}
}

// add appends entry to the bucket's write cache, flushing to disk first if
// the cache has no room left.
func (b *bucket) add(entry []byte, cacheSize uint64) error {
	if uint64(len(b.writeCache)+len(entry)) > cacheSize {
		if err := b.flush(); err != nil {
			return err
		}
	}
	b.writeCache = append(b.writeCache, entry...)
	return nil
}

func (b *bucket) flush() error {
	if len(b.writeCache) == 0 {
		return nil
	}
	if err := b.buffered.Write(b.writePtr, b.writeCache); err != nil {
		return err
	}
	b.writePtr += uint64(len(b.writeCache))
	b.writeCache = b.writeCache[:0]
	return b.buffered.FlushWrite()
}

// size is the number of bytes committed to this bucket (disk plus any
// cached-but-unflushed tail).
func (b *bucket) size() uint64 {
	return b.writePtr + uint64(len(b.writeCache))
}

func (b *bucket) close() error {
	return b.raw.Close()
}

func (b *bucket) remove(fs vfs.FS) error {
	return fs.Remove(b.raw.FileName())
}
