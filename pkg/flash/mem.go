package flash

import (
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"sync"
)

// ErrInjected is returned by MemFS operations configured to fail.
var ErrInjected = errors.New("injected flash failure")

// MemFS keeps files in RAM. It counts file creations so callers can
// verify write avoidance, and can inject failures.
type MemFS struct {
	FailOpen   bool
	FailCreate bool
	FailWrite  bool

	lock    sync.Mutex
	files   map[string][]byte
	creates map[string]int
}

// NewMemFS creates an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{}
}

func (m *MemFS) init() {
	if m.files == nil {
		m.files = make(map[string][]byte)
		m.creates = make(map[string]int)
	}
}

// Open implements FS.
func (m *MemFS) Open(name string) (io.ReadCloser, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	if m.FailOpen {
		return nil, ErrInjected
	}
	data, ok := m.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return ioutil.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

// Create implements FS.
func (m *MemFS) Create(name string) (File, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	if m.FailCreate {
		return nil, ErrInjected
	}
	m.files[name] = nil
	m.creates[name]++
	return &memFile{fs: m, name: name}, nil
}

// Remove implements FS.
func (m *MemFS) Remove(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	delete(m.files, name)
	return nil
}

// Creates returns how many times the file was created (written).
func (m *MemFS) Creates(name string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	return m.creates[name]
}

// Bytes returns a copy of file content, nil if absent.
func (m *MemFS) Bytes(name string) []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	data, ok := m.files[name]
	if !ok {
		return nil
	}
	return append([]byte{}, data...)
}

// SetBytes replaces file content directly without counting a write.
func (m *MemFS) SetBytes(name string, data []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	m.files[name] = append([]byte{}, data...)
}

type memFile struct {
	fs     *MemFS
	name   string
	closed bool
}

func (f *memFile) Write(p []byte) (int, error) {
	f.fs.lock.Lock()
	defer f.fs.lock.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.fs.FailWrite {
		return 0, ErrInjected
	}
	f.fs.files[f.name] = append(f.fs.files[f.name], p...)
	return len(p), nil
}

func (f *memFile) Sync() error {
	return nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}
