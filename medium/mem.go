package medium

import (
	"io"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Mem is a Medium backed by a byte slice. It is the adapter used by
// tests; the eefs tool always works on an image file or a device.
type Mem struct {
	buf []byte
}

var _ eepromfs.Medium = (*Mem)(nil)

// NewMem returns a zeroed in-memory medium of the given size.
func NewMem(size int64) *Mem {
	return &Mem{buf: make([]byte, size)}
}

// Bytes exposes the backing slice. Callers must not resize it.
func (m *Mem) Bytes() []byte { return m.buf }

func (m *Mem) Size() int64 { return int64(len(m.buf)) }

func (m *Mem) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	max := len(m.buf) - int(off)
	var err error
	if max < len(p) {
		p = p[:max]
		err = io.EOF
	}

	copy(p, m.buf[int(off):])

	return len(p), err
}

func (m *Mem) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	max := len(m.buf) - int(off)
	var err error
	if max < len(p) {
		p = p[:max]
		err = io.EOF
	}

	copy(m.buf[int(off):], p)

	return len(p), err
}

func (m *Mem) UpdateAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	max := len(m.buf) - int(off)
	var err error
	if max < len(p) {
		p = p[:max]
		err = io.EOF
	}

	// Write only runs of differing bytes.
	for i := 0; i < len(p); {
		if m.buf[int(off)+i] == p[i] {
			i++
			continue
		}
		j := i
		for j < len(p) && m.buf[int(off)+j] != p[j] {
			j++
		}
		copy(m.buf[int(off)+i:], p[i:j])
		i = j
	}

	return len(p), err
}

func (m *Mem) ZeroDword(off int64) error {
	var zero [4]byte
	_, err := m.WriteAt(zero[:], off)
	return err
}
