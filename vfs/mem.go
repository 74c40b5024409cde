package vfs

import (
	"io"
	"sync"

	chiaerrors "github.com/xdustinface/chiapos/errors"
)

// NewMem returns an in-memory FS, for deterministic tests that would
// otherwise depend on the host file system.
func NewMem() FS {
	return &memFS{files: make(map[string]*memFile)}
}

type memFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

type memFile struct {
	mu   sync.Mutex
	data []byte
}

func (fs *memFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := &memFile{}
	fs.files[name] = f
	return &memHandle{f: f}, nil
}

func (fs *memFS) OpenReadWrite(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		f = &memFile{}
		fs.files[name] = f
	}
	return &memHandle{f: f}, nil
}

func (fs *memFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, chiaerrors.Newf("mem: no such file %s", name)
	}
	return &memHandle{f: f, readOnly: true}, nil
}

func (fs *memFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, name)
	return nil
}

func (fs *memFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[oldname]
	if !ok {
		return chiaerrors.Newf("mem: no such file %s", oldname)
	}
	fs.files[newname] = f
	delete(fs.files, oldname)
	return nil
}

func (fs *memFS) Link(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[oldname]
	if !ok {
		return chiaerrors.Newf("mem: no such file %s", oldname)
	}
	fs.files[newname] = f
	return nil
}

func (fs *memFS) Exists(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.files[name]
	return ok
}

func (fs *memFS) PathJoin(elem ...string) string {
	out := ""
	for i, e := range elem {
		if i > 0 {
			out += "/"
		}
		out += e
	}
	return out
}

type memHandle struct {
	f        *memFile
	readOnly bool
	closed   bool
}

func (h *memHandle) ReadAt(p []byte, off int64) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if off >= int64(len(h.f.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *memHandle) WriteAt(p []byte, off int64) (int, error) {
	if h.readOnly {
		return 0, chiaerrors.NewInvariantError("mem: write to read-only handle")
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.f.data)) {
		grown := make([]byte, end)
		copy(grown, h.f.data)
		h.f.data = grown
	}
	copy(h.f.data[off:end], p)
	return len(p), nil
}

func (h *memHandle) Truncate(size int64) error {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if size <= int64(len(h.f.data)) {
		h.f.data = h.f.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.f.data)
	h.f.data = grown
	return nil
}

func (h *memHandle) Sync() error {
	return nil
}

func (h *memHandle) Close() error {
	h.closed = true
	return nil
}
