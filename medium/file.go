package medium

import (
	"os"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// File is a Medium backed by an image file on the host filesystem.
type File struct {
	f    *os.File
	size int64
}

var _ eepromfs.Medium = (*File)(nil)

// CreateFile makes (or truncates) an image file of the given size and
// returns it as a medium. The image is zero-filled.
func CreateFile(path string, size int64) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "size image")
	}

	return &File{f: f, size: size}, nil
}

// OpenFile opens an existing image file; its size is taken from the
// file itself.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat image")
	}

	return &File{f: f, size: fi.Size()}, nil
}

func (m *File) Size() int64 { return m.size }

func (m *File) ReadAt(p []byte, off int64) (int, error) {
	return m.f.ReadAt(p, off)
}

func (m *File) WriteAt(p []byte, off int64) (int, error) {
	return m.f.WriteAt(p, off)
}

// UpdateAt reads back the target range and rewrites only the runs that
// differ, mirroring the endurance-preserving update of EEPROM
// libraries.
func (m *File) UpdateAt(p []byte, off int64) (int, error) {
	cur := make([]byte, len(p))
	if _, err := m.f.ReadAt(cur, off); err != nil {
		return 0, err
	}

	for i := 0; i < len(p); {
		if cur[i] == p[i] {
			i++
			continue
		}
		j := i
		for j < len(p) && cur[j] != p[j] {
			j++
		}
		if _, err := m.f.WriteAt(p[i:j], off+int64(i)); err != nil {
			return i, err
		}
		i = j
	}

	return len(p), nil
}

func (m *File) ZeroDword(off int64) error {
	var zero [4]byte
	_, err := m.f.WriteAt(zero[:], off)
	return err
}

// Sync flushes the image to stable storage.
func (m *File) Sync() error { return m.f.Sync() }

// Close closes the underlying image file.
func (m *File) Close() error { return m.f.Close() }
