package vfs

import (
	"github.com/xdustinface/chiapos/internal/base"
)

// Buffered layers sequential-access caching on top of a Disk (design
// §4.2): a single read-ahead window advances forward as the caller reads
// contiguously, and a single write-coalescing window accumulates
// contiguous writes before flushing. A read that jumps backward bypasses
// the cache (logged, not an error) rather than invalidating and refilling
// the window, since backward reads are expected to be rare and the design
// treats them as a warning condition, not a fast path worth optimizing.
type Buffered struct {
	disk     Disk
	fileSize uint64

	readAheadSize uint64
	readBuf       []byte
	readBufStart  uint64
	readBufValid  bool

	writeCacheSize uint64
	writeBuf       []byte
	writeBufStart  uint64
	writeBufValid  bool

	logger base.Logger
}

// NewBuffered wraps disk with a readAhead-byte read window and a
// writeCache-byte write-coalescing window. fileSize is a hint used to clamp
// read-ahead past end-of-file; it is kept in sync by Truncate.
func NewBuffered(disk Disk, fileSize, readAhead, writeCache uint64, logger base.Logger) *Buffered {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	return &Buffered{
		disk:           disk,
		fileSize:       fileSize,
		readAheadSize:  readAhead,
		writeCacheSize: writeCache,
		logger:         logger,
	}
}

// Read implements Disk.
func (b *Buffered) Read(begin, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	if b.readBufValid && begin >= b.readBufStart {
		end := b.readBufStart + uint64(len(b.readBuf))
		if begin+length <= end {
			off := begin - b.readBufStart
			return b.readBuf[off : off+length], nil
		}
	}

	if b.readBufValid && begin < b.readBufStart {
		b.logger.Infof("vfs: backward read on %s at %d, cache starts at %d; bypassing cache\n",
			b.disk.FileName(), begin, b.readBufStart)
		return b.disk.Read(begin, length)
	}

	toRead := b.readAheadSize
	if toRead < length {
		toRead = length
	}
	if b.fileSize > 0 && begin+toRead > b.fileSize {
		if begin >= b.fileSize {
			toRead = length
		} else {
			toRead = b.fileSize - begin
		}
	}
	if toRead < length {
		toRead = length
	}

	data, err := b.disk.Read(begin, toRead)
	if err != nil {
		return nil, err
	}
	b.readBuf = data
	b.readBufStart = begin
	b.readBufValid = true
	return b.readBuf[:length], nil
}

// Write implements Disk.
func (b *Buffered) Write(begin uint64, data []byte) error {
	if b.writeBufValid && begin == b.writeBufStart+uint64(len(b.writeBuf)) &&
		uint64(len(b.writeBuf))+uint64(len(data)) <= b.writeCacheSize {
		b.writeBuf = append(b.writeBuf, data...)
		return nil
	}

	if err := b.FlushWrite(); err != nil {
		return err
	}

	if uint64(len(data)) >= b.writeCacheSize {
		return b.disk.Write(begin, data)
	}

	b.writeBuf = append(b.writeBuf[:0], data...)
	b.writeBufStart = begin
	b.writeBufValid = true
	return nil
}

// FlushWrite forces the write-coalescing window out to the underlying
// Disk. It is called automatically whenever a write would otherwise have
// to be split, and must be called explicitly before reading back data that
// was just written, since Read does not consult the write window.
func (b *Buffered) FlushWrite() error {
	if !b.writeBufValid || len(b.writeBuf) == 0 {
		b.writeBufValid = false
		return nil
	}
	err := b.disk.Write(b.writeBufStart, b.writeBuf)
	b.writeBuf = b.writeBuf[:0]
	b.writeBufValid = false
	return err
}

// Truncate implements Disk.
func (b *Buffered) Truncate(size uint64) error {
	if err := b.FlushWrite(); err != nil {
		return err
	}
	b.readBufValid = false
	b.fileSize = size
	return b.disk.Truncate(size)
}

// FileName implements Disk.
func (b *Buffered) FileName() string {
	return b.disk.FileName()
}

// FreeMemory implements Disk.
func (b *Buffered) FreeMemory() {
	b.readBuf = nil
	b.readBufValid = false
	b.writeBuf = nil
	b.writeBufValid = false
	b.disk.FreeMemory()
}
