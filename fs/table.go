package fs

import (
	"encoding/binary"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// fileAlloc is one allocation table entry: the file's byte size and
// the head of its block chain. An empty slot is (0, NullLBA). In the
// trailing slot the head field is the free-chain head and size is
// unused.
type fileAlloc struct {
	size uint16
	head eepromfs.LBA
}

func (a fileAlloc) encode(p []byte) {
	binary.LittleEndian.PutUint16(p[0:2], a.size)
	binary.LittleEndian.PutUint16(p[2:4], uint16(a.head))
}

func decodeAlloc(p []byte) fileAlloc {
	return fileAlloc{
		size: binary.LittleEndian.Uint16(p[0:2]),
		head: eepromfs.LBA(binary.LittleEndian.Uint16(p[2:4])),
	}
}

func (fs *FS) slotOffset(i int) int64 {
	return fs.cfg.Start + fs.cfg.tableOffset() + int64(i)*allocEntrySize
}

// loadTable bulk-reads the allocation table from the medium into the
// cache.
func (fs *FS) loadTable() error {
	buf := make([]byte, (fs.cfg.MaxFiles+1)*allocEntrySize)
	if _, err := fs.m.ReadAt(buf, fs.slotOffset(0)); err != nil {
		return errors.Wrap(err, "load allocation table")
	}

	for i := range fs.table {
		fs.table[i] = decodeAlloc(buf[i*allocEntrySize:])
	}

	return nil
}

// mirrorSlot writes the cached entry i back to the medium, touching
// only that entry's bytes.
func (fs *FS) mirrorSlot(i int) error {
	var buf [allocEntrySize]byte
	fs.table[i].encode(buf[:])

	if _, err := fs.m.UpdateAt(buf[:], fs.slotOffset(i)); err != nil {
		return errors.Wrapf(err, "mirror table slot %d", i)
	}
	return nil
}

// mirrorFreeHead mirrors the trailing slot holding the free-chain head.
func (fs *FS) mirrorFreeHead() error {
	return fs.mirrorSlot(fs.cfg.MaxFiles)
}

// writeTable bulk-writes the whole cached table. Only format uses it.
func (fs *FS) writeTable() error {
	buf := make([]byte, (fs.cfg.MaxFiles+1)*allocEntrySize)
	for i, a := range fs.table {
		a.encode(buf[i*allocEntrySize:])
	}

	if _, err := fs.m.UpdateAt(buf, fs.slotOffset(0)); err != nil {
		return errors.Wrap(err, "write allocation table")
	}
	return nil
}

func (fs *FS) freeHead() eepromfs.LBA {
	return fs.table[fs.cfg.MaxFiles].head
}

func (fs *FS) setFreeHead(l eepromfs.LBA) {
	fs.table[fs.cfg.MaxFiles].head = l
}

// wrap folds an identifier into the table, modulo the slot count.
// Collisions are by design, not an error.
func (fs *FS) wrap(id eepromfs.FileID) eepromfs.FileID {
	if int(id) >= fs.cfg.MaxFiles {
		wrapped := eepromfs.FileID(int(id) % fs.cfg.MaxFiles)
		fs.debugf(2, "file id %d too large, wrapped to %d", id, wrapped)
		return wrapped
	}
	return id
}

// FileInfo describes one occupied table slot.
type FileInfo struct {
	ID   eepromfs.FileID
	Size int
}

// Stat reports the stored size of a file, wrapping the identifier the
// same way the open calls do.
func (fs *FS) Stat(id eepromfs.FileID) (FileInfo, error) {
	f := fs.wrap(id)
	if fs.table[f].head.IsNull() {
		return FileInfo{}, errors.Wrapf(ErrNotFound, "file %d", f)
	}
	return FileInfo{ID: f, Size: int(fs.table[f].size)}, nil
}

// Files lists the occupied table slots in slot order.
func (fs *FS) Files() []FileInfo {
	var infos []FileInfo
	for i := 0; i < fs.cfg.MaxFiles; i++ {
		if !fs.table[i].head.IsNull() {
			infos = append(infos, FileInfo{ID: eepromfs.FileID(i), Size: int(fs.table[i].size)})
		}
	}
	return infos
}
