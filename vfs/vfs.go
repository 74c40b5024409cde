// Package vfs provides the plotter's file-system and disk abstractions
// (design §4.2): an FS namespace for opening/creating/removing the
// temporary and final files, and three Disk implementations layered on top
// of it — FileDisk (raw positional I/O with retry), Buffered
// (sequential-optimized read-ahead/write-coalescing), and Filtered
// (read-only, bitfield-gated view used by phase 3 to skip dead entries
// without rewriting a table). The shape follows pebble's vfs.FS/vfs.File
// split, trimmed to the handful of operations a plot run actually needs.
package vfs

import (
	"io"
	"os"
	"path/filepath"
)

// File is the minimal positional file handle the plotter needs: random
// read/write plus the two lifecycle hooks (Close, Sync).
type File interface {
	io.Closer
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// FS is a namespace for files, mirroring pebble's vfs.FS but trimmed to
// what create_plot uses: no directory locking, no listing, no stat — just
// enough to manage temp files and atomically publish the final one.
type FS interface {
	// Create creates the named file for reading and writing, truncating it
	// if it already exists.
	Create(name string) (File, error)
	// OpenReadWrite opens the named file for reading and writing, creating
	// it if it does not exist (but not truncating it if it does).
	OpenReadWrite(name string) (File, error)
	// Open opens the named file read-only.
	Open(name string) (File, error)
	// Remove removes the named file. It is not an error if the file does
	// not exist.
	Remove(name string) error
	// Rename renames a file, overwriting newname if it exists.
	Rename(oldname, newname string) error
	// Link creates newname as a hard link to oldname.
	Link(oldname, newname string) error
	// Exists reports whether name exists.
	Exists(name string) bool
	// PathJoin joins path elements using the host's separator.
	PathJoin(elem ...string) string
}

// Default is the FS backed by the operating system's file system.
var Default FS = osFS{}

type osFS struct{}

func (osFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (osFS) OpenReadWrite(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
}

func (osFS) Open(name string) (File, error) {
	return os.OpenFile(name, os.O_RDONLY, 0)
}

func (osFS) Remove(name string) error {
	err := os.Remove(name)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (osFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (osFS) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

func (osFS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (osFS) PathJoin(elem ...string) string {
	return filepath.Join(elem...)
}
