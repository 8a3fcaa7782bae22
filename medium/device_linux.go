//go:build linux

package medium

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Device is a Medium over a raw device node, e.g. an I2C EEPROM
// exposed by the kernel at /sys/bus/i2c/.../eeprom. Writes go through
// O_SYNC so the word-atomicity assumption holds as well as the kernel
// allows.
type Device struct {
	fd   int
	size int64
}

var _ eepromfs.Medium = (*Device)(nil)

// OpenDevice opens the device node at path.
func OpenDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	size, err := unix.Seek(fd, 0, 2)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "size %s", path)
	}

	return &Device{fd: fd, size: size}, nil
}

func (d *Device) Size() int64 { return d.size }

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return unix.Pread(d.fd, p, off)
}

func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	return unix.Pwrite(d.fd, p, off)
}

func (d *Device) UpdateAt(p []byte, off int64) (int, error) {
	cur := make([]byte, len(p))
	if _, err := unix.Pread(d.fd, cur, off); err != nil {
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
		if _, err := unix.Pwrite(d.fd, p[i:j], off+int64(i)); err != nil {
			return i, err
		}
		i = j
	}

	return len(p), nil
}

func (d *Device) ZeroDword(off int64) error {
	var zero [4]byte
	_, err := unix.Pwrite(d.fd, zero[:], off)
	return err
}

// Close releases the device.
func (d *Device) Close() error { return unix.Close(d.fd) }
