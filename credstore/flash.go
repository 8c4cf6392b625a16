package credstore

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultPageSize is the erase page size of the STM32F103 medium density
// parts.
const DefaultPageSize = 1024

const erased = 0xff

var ErrNotErased = errors.New("program over non-erased flash")

// MemFlash is a flash page kept in memory. The error fields allow tests to
// inject erase and program failures.
type MemFlash struct {
	Page       []byte
	EraseErr   error
	ProgramErr error
}

// NewMemFlash returns an erased page of the given size.
func NewMemFlash(size int) *MemFlash {
	f := &MemFlash{Page: make([]byte, size)}
	fill(f.Page)
	return f
}

func fill(p []byte) {
	for i := range p {
		p[i] = erased
	}
}

func (f *MemFlash) Size() int { return len(f.Page) }

func (f *MemFlash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(f.Page)) {
		return 0, io.EOF
	}
	n := copy(p, f.Page[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *MemFlash) ErasePage() error {
	if f.EraseErr != nil {
		return f.EraseErr
	}
	fill(f.Page)
	return nil
}

func (f *MemFlash) Program(off int64, p []byte) error {
	if f.ProgramErr != nil {
		return f.ProgramErr
	}
	if off < 0 || off+int64(len(p)) > int64(len(f.Page)) {
		return fmt.Errorf("program %d bytes at %d: out of page", len(p), off)
	}
	for _, c := range f.Page[off : off+int64(len(p))] {
		if c != erased {
			return ErrNotErased
		}
	}
	copy(f.Page[off:], p)
	return nil
}

// FileFlash emulates the flash page with a file of the page size. A missing
// file reads as an erased page.
type FileFlash struct {
	path string
	size int
}

// NewFileFlash returns a file backed page.
func NewFileFlash(path string, size int) *FileFlash {
	return &FileFlash{path: path, size: size}
}

func (f *FileFlash) Size() int { return f.size }

func (f *FileFlash) ReadAt(p []byte, off int64) (int, error) {
	page, err := f.read()
	if err != nil {
		return 0, err
	}
	if off < 0 || off >= int64(len(page)) {
		return 0, io.EOF
	}
	n := copy(p, page[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *FileFlash) read() ([]byte, error) {
	page := make([]byte, f.size)
	fill(page)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return page, nil
		}
		return nil, err
	}
	copy(page, data)
	return page, nil
}

func (f *FileFlash) ErasePage() error {
	page := make([]byte, f.size)
	fill(page)
	return os.WriteFile(f.path, page, 0o600)
}

func (f *FileFlash) Program(off int64, p []byte) error {
	page, err := f.read()
	if err != nil {
		return err
	}
	if off < 0 || off+int64(len(p)) > int64(len(page)) {
		return fmt.Errorf("program %d bytes at %d: out of page", len(p), off)
	}
	for _, c := range page[off : off+int64(len(p))] {
		if c != erased {
			return ErrNotErased
		}
	}
	copy(page[off:], p)
	return os.WriteFile(f.path, page, 0o600)
}
