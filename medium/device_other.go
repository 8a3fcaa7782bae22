//go:build !linux

package medium

import (
	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

var errUnsupported = errors.New("raw device media are not supported on this platform")

// Device is only functional on Linux; see device_linux.go.
type Device struct{}

var _ eepromfs.Medium = (*Device)(nil)

// OpenDevice is only available on Linux.
func OpenDevice(path string) (*Device, error) {
	return nil, errUnsupported
}

func (d *Device) Size() int64 { return 0 }

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	return 0, errUnsupported
}

func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	return 0, errUnsupported
}

func (d *Device) UpdateAt(p []byte, off int64) (int, error) {
	return 0, errUnsupported
}

func (d *Device) ZeroDword(off int64) error { return errUnsupported }

func (d *Device) Close() error { return errUnsupported }
