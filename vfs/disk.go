package vfs

// Disk is the capability set every layer of the plotter's storage stack
// implements: FileDisk, Buffered, and Filtered (design §4.2, §9 — "a
// polymorphic disk interface via a vtable" re-expressed as this capability
// set with three concrete variants instead).
type Disk interface {
	// Read returns length bytes beginning at begin. Implementations may
	// return a slice that aliases an internal buffer; callers must treat
	// it as borrowed and not retain it past their next call into the same
	// Disk.
	Read(begin, length uint64) ([]byte, error)
	// Write writes data at begin.
	Write(begin uint64, data []byte) error
	// Truncate resizes the underlying file to size.
	Truncate(size uint64) error
	// FileName returns the path backing this Disk.
	FileName() string
	// FreeMemory releases any buffers this Disk is holding, without
	// invalidating the Disk for further use.
	FreeMemory()
}
