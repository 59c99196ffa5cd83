// Package flash abstracts the named-file storage area on the device's
// internal flash. Several independent files (e.g. radio settings and
// user data) live side by side in one area.
package flash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// File is a file opened for writing.
type File interface {
	io.Writer
	// Sync flushes written data to the medium.
	Sync() error
	io.Closer
}

// FS is a flat namespace of named files.
type FS interface {
	// Open opens a file for reading. It returns an error satisfying
	// os.IsNotExist when the file is absent.
	Open(name string) (io.ReadCloser, error)
	// Create creates or truncates a file for writing.
	Create(name string) (File, error)
	// Remove deletes a file. Removing an absent file is not an error.
	Remove(name string) error
}

// ErrInvalidName indicates a file name that is not a single path element.
var ErrInvalidName = errors.New("invalid file name")

// DirFS stores files in a host directory, e.g. a mounted flash partition.
type DirFS struct {
	Root string
}

// NewDirFS creates the directory if needed.
func NewDirFS(root string) (*DirFS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &DirFS{Root: root}, nil
}

func (d *DirFS) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", ErrInvalidName
	}
	return filepath.Join(d.Root, name), nil
}

// Open implements FS.
func (d *DirFS) Open(name string) (io.ReadCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create implements FS.
func (d *DirFS) Create(name string) (File, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove implements FS.
func (d *DirFS) Remove(name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
