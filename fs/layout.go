package fs

import (
	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// On-medium layout, in order: metadata header, allocation table, data
// blocks. All integers are little-endian.
const (
	metaOffset = 0

	// Five uint16 fields: block size, start, total size, max files,
	// max blocks per file.
	metaSize = 10

	// Allocation entry: uint16 size, int16 head.
	allocEntrySize = 4
)

// Config fixes the geometry of a filesystem. Changing any field makes
// stored metadata mismatch on Init, which quick-formats the medium.
type Config struct {
	// Start is the byte offset of the filesystem region on the medium.
	Start int64

	// Size is the region length in bytes.
	Size int64

	// BlockSize is the size of one data block, link field included.
	BlockSize int

	// MaxFiles is the number of table slots. A prime reduces collisions
	// from modular identifier wrapping.
	MaxFiles int

	// MaxBlocksPerFile caps the chain length of a single file.
	MaxBlocksPerFile int
}

// DefaultConfig fits a 2 KiB EEPROM part.
var DefaultConfig = Config{
	Start:            0,
	Size:             2048,
	BlockSize:        32,
	MaxFiles:         29,
	MaxBlocksPerFile: 8,
}

func (c Config) tableOffset() int64 {
	return metaOffset + metaSize
}

func (c Config) dataOffset() int64 {
	return c.tableOffset() + int64(c.MaxFiles+1)*allocEntrySize
}

// NumBlocks is the number of data blocks the region holds.
func (c Config) NumBlocks() int {
	return int((c.Size - c.dataOffset()) / int64(c.BlockSize))
}

// PayloadSize is the number of data bytes per block.
func (c Config) PayloadSize() int {
	return c.BlockSize - eepromfs.LBASize
}

// MaxFileSize is the largest byte count a single file can hold.
func (c Config) MaxFileSize() int {
	return c.MaxBlocksPerFile * c.PayloadSize()
}

// blockPtr maps a block address to its medium offset. The mod is
// defensive for wrap arithmetic; valid addresses never trigger it.
func (c Config) blockPtr(l eepromfs.LBA) int64 {
	return c.Start + c.dataOffset() + (int64(l)*int64(c.BlockSize))%c.Size
}

func (c Config) check() error {
	switch {
	case c.BlockSize <= eepromfs.LBASize:
		return errors.Wrap(ErrGeometry, "block size must exceed the link field")
	case c.MaxFiles < 1 || c.MaxBlocksPerFile < 1:
		return errors.Wrap(ErrGeometry, "need at least one file slot and one block per file")
	case c.Size <= c.dataOffset():
		return errors.Wrap(ErrGeometry, "region too small for the allocation table")
	case c.NumBlocks() < 1:
		return errors.Wrap(ErrGeometry, "region too small for any data blocks")
	case c.NumBlocks() > 1<<15-1:
		return errors.Wrap(ErrGeometry, "too many blocks for 16-bit addressing")
	case c.Start > 0xffff || c.Size > 0xffff:
		return errors.Wrap(ErrGeometry, "region does not fit 16-bit metadata fields")
	case c.MaxFileSize() > 0xffff:
		return errors.Wrap(ErrGeometry, "file size limit does not fit a 16-bit size field")
	}
	return nil
}
