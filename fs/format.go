package fs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// FormatMode selects how much of the medium a format touches.
type FormatMode uint8

const (
	// FormatFull rewrites every block in its entirety, zeroing payloads.
	FormatFull FormatMode = iota

	// FormatQuick rewrites only link fields and the table. Cheap.
	FormatQuick

	// FormatWipe zeroes the whole region dword by dword first, then
	// proceeds as a quick format. Destructive, slow, full wear cost.
	FormatWipe
)

// meta is the fixed header identifying a formatted filesystem. There
// is no magic or version; identity is the exact match of these fields
// against the configured geometry.
type meta struct {
	blockSize        uint16
	start            uint16
	size             uint16
	maxFiles         uint16
	maxBlocksPerFile uint16
}

func (fs *FS) meta() meta {
	return meta{
		blockSize:        uint16(fs.cfg.BlockSize),
		start:            uint16(fs.cfg.Start),
		size:             uint16(fs.cfg.Size),
		maxFiles:         uint16(fs.cfg.MaxFiles),
		maxBlocksPerFile: uint16(fs.cfg.MaxBlocksPerFile),
	}
}

func (fs *FS) readMeta() (meta, error) {
	var buf [metaSize]byte
	if _, err := fs.m.ReadAt(buf[:], fs.cfg.Start+metaOffset); err != nil {
		return meta{}, errors.Wrap(err, "read metadata")
	}

	return meta{
		blockSize:        binary.LittleEndian.Uint16(buf[0:2]),
		start:            binary.LittleEndian.Uint16(buf[2:4]),
		size:             binary.LittleEndian.Uint16(buf[4:6]),
		maxFiles:         binary.LittleEndian.Uint16(buf[6:8]),
		maxBlocksPerFile: binary.LittleEndian.Uint16(buf[8:10]),
	}, nil
}

func (fs *FS) writeMeta() error {
	m := fs.meta()

	var buf [metaSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], m.blockSize)
	binary.LittleEndian.PutUint16(buf[2:4], m.start)
	binary.LittleEndian.PutUint16(buf[4:6], m.size)
	binary.LittleEndian.PutUint16(buf[6:8], m.maxFiles)
	binary.LittleEndian.PutUint16(buf[8:10], m.maxBlocksPerFile)

	if _, err := fs.m.WriteAt(buf[:], fs.cfg.Start+metaOffset); err != nil {
		return errors.Wrap(err, "write metadata")
	}
	return nil
}

// Format lays down a fresh filesystem: an initial free chain in which
// block i links to block i-1 (block 0 terminates, the highest block
// becomes the free head), an empty allocation table, and the metadata
// header last.
func (fs *FS) Format(mode FormatMode) error {
	fs.debugf(1, "formatting filesystem")

	if mode == FormatWipe {
		if err := fs.Wipe(); err != nil {
			return err
		}
	}

	num := fs.cfg.NumBlocks()

	if mode == FormatFull {
		blk := make([]byte, fs.cfg.BlockSize)
		for i := 0; i < num; i++ {
			fs.debugf(3, "relinking block %d -> %d", i, i-1)
			binary.LittleEndian.PutUint16(blk, uint16(eepromfs.LBA(i-1)))
			if _, err := fs.m.UpdateAt(blk, fs.cfg.blockPtr(eepromfs.LBA(i))); err != nil {
				return errors.Wrapf(err, "format block %d", i)
			}
		}
	} else {
		for i := 0; i < num; i++ {
			if err := fs.relink(eepromfs.LBA(i), eepromfs.LBA(i-1)); err != nil {
				return err
			}
		}
	}

	fs.debugf(2, "writing file allocation table")

	for i := 0; i < fs.cfg.MaxFiles; i++ {
		fs.table[i] = fileAlloc{size: 0, head: eepromfs.NullLBA}
	}
	fs.table[fs.cfg.MaxFiles] = fileAlloc{size: 0, head: eepromfs.LBA(num - 1)}

	if err := fs.writeTable(); err != nil {
		return err
	}

	fs.debugf(2, "writing metadata")
	if err := fs.writeMeta(); err != nil {
		return err
	}

	fs.debugf(1, "successfully formatted")
	return nil
}

// Wipe zeroes the whole filesystem region one dword at a time.
func (fs *FS) Wipe() error {
	for off := int64(0); off < fs.cfg.Size; off += 4 {
		if err := fs.m.ZeroDword(fs.cfg.Start + off); err != nil {
			return errors.Wrapf(err, "wipe at %#x", off)
		}
	}
	return nil
}

// Dump writes a hex+ASCII listing of the whole region to w, sixteen
// bytes per row.
func (fs *FS) Dump(w io.Writer) error {
	r := readerFromReaderAt(fs.m, fs.cfg.Start)
	row := make([]byte, 16)

	for off := int64(0); off < fs.cfg.Size; off += 16 {
		n := int64(len(row))
		if fs.cfg.Size-off < n {
			n = fs.cfg.Size - off
		}
		if _, err := io.ReadFull(r, row[:n]); err != nil {
			return errors.Wrapf(err, "dump at %#x", off)
		}

		if _, err := fmt.Fprintf(w, "0x%03x : ", off); err != nil {
			return err
		}
		for i := int64(0); i < n; i++ {
			if _, err := fmt.Fprintf(w, "%02x ", row[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, ": %s\n", printable(row[:n])); err != nil {
			return err
		}
	}

	return nil
}

func printable(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		if b < 0x20 || b > 0x7e {
			out[i] = '.'
		} else {
			out[i] = b
		}
	}
	return out
}
