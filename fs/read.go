package fs

import (
	"io"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Read copies the handle's file into buf, which must hold at least
// Size() bytes. The walk ends at the chain terminator or once the
// stored size is satisfied, whichever comes first.
func (fs *FS) Read(h *Handle, buf []byte) (int, error) {
	if h == nil {
		return 0, ErrNullHandle
	}
	if h.closed {
		return 0, ErrClosed
	}
	if !fs.validLBA(h.first) {
		fs.errorf("tried to read from null file handle")
		return 0, ErrNullHandle
	}

	size := h.Size()
	if len(buf) < size {
		return 0, io.ErrShortBuffer
	}

	payload := fs.cfg.PayloadSize()
	cur := h.first
	done := 0

	for steps := 0; ; steps++ {
		if steps > fs.cfg.NumBlocks() {
			return done, errors.Wrapf(ErrOutOfRange, "chain of file %d does not terminate", h.id)
		}

		n := payload
		if size-done < n {
			n = size - done
		}

		fs.debugf(3, "reading from block %d", cur)
		if err := fs.readPayload(cur, buf[done:done+n]); err != nil {
			return done, err
		}
		done += n

		next, err := fs.readNext(cur)
		if err != nil {
			return done, err
		}
		if next.IsNull() || done >= size {
			break
		}
		cur = next
	}

	return done, nil
}

// Delete returns a file's whole chain to the free list and empties its
// table slot. Deleting an absent file is a no-op.
func (fs *FS) Delete(id eepromfs.FileID) error {
	f := fs.wrap(id)
	fs.debugf(1, "deleting file %d", f)

	if fs.table[f].head.IsNull() {
		fs.debugf(2, "file %d not found, nothing to delete", f)
		return nil
	}

	if err := fs.unlink(fs.table[f].head); err != nil {
		return err
	}

	fs.table[f] = fileAlloc{size: 0, head: eepromfs.NullLBA}
	if err := fs.mirrorSlot(int(f)); err != nil {
		return err
	}

	fs.debugf(1, "file %d successfully deleted", f)
	return nil
}
