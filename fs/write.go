package fs

import (
	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Write buffers p into the handle's chain. Full payloads stream to
// freshly taken free blocks as they fill; the trailing partial payload
// stays in RAM until Close flushes it, so several Write calls behave
// like one concatenated write.
//
// A taken block's link field keeps whatever the free chain left there,
// which is the address of the block the next flush will take: the new
// chain's topology is inherited from the free chain. Only the final
// block's link is ever rewritten, by Close.
//
// When the per-file block budget runs out, Write accepts what fits and
// returns the short count with ErrFileTooLarge. When the medium runs
// out, Write stops at the payload it could not place and returns
// ErrMediumFull; that payload is counted and stays buffered, and it
// reaches the medium only if a block is free when Close flushes it.
func (fs *FS) Write(h *Handle, p []byte) (int, error) {
	if h == nil {
		return 0, ErrNullHandle
	}
	if h.closed {
		return 0, ErrClosed
	}
	if h.mode != eepromfs.ModeWrite && h.mode != eepromfs.ModeAppend {
		fs.errorf("tried to write to read-only file handle %d", h.id)
		return 0, ErrBadMode
	}

	payload := fs.cfg.PayloadSize()

	// First effective write on an append handle: if the stored file
	// ends in a partial block, pull those bytes in front of the new
	// data. The stale stored tail is freed when the handle commits.
	if h.mode == eepromfs.ModeAppend && !h.absorbed && len(p) > 0 {
		h.absorbed = true
		if over := h.base % payload; over > 0 && !fs.table[h.id].head.IsNull() {
			tail, err := fs.tailOf(fs.table[h.id].head)
			if err != nil {
				return 0, err
			}
			h.tail = make([]byte, over, payload)
			if err := fs.readPayload(tail, h.tail); err != nil {
				return 0, err
			}
		}
	}
	h.dirty = true

	fs.debugf(1, "writing %d bytes to file %d", len(p), h.id)

	// Per-file budget: blocks retained from the stored chain plus the
	// chain being accumulated.
	kept := 0
	if h.mode == eepromfs.ModeAppend {
		kept = h.base / payload
	}
	capacity := (fs.cfg.MaxBlocksPerFile-kept)*payload - h.stored - len(h.tail)

	accept := len(p)
	var capErr error
	if accept > capacity {
		accept = capacity
		if accept < 0 {
			accept = 0
		}
		capErr = errors.Wrapf(ErrFileTooLarge, "file %d", h.id)
		fs.errorf("file too large - write truncated to %d bytes", h.written+accept)
	}

	n := 0
	for n < accept {
		room := payload - len(h.tail)
		if room > accept-n {
			room = accept - n
		}
		h.tail = append(h.tail, p[n:n+room]...)
		n += room

		if len(h.tail) == payload {
			if err := fs.flush(h); err != nil {
				h.written += n
				return n, err
			}
		}
	}
	h.written += n

	if capErr != nil {
		return n, capErr
	}

	fs.debugf(1, "file %d successfully written", h.id)
	return n, nil
}

// flush moves the buffered payload into a block taken from the free
// chain. Writing the payload does not touch the block's link field.
func (fs *FS) flush(h *Handle) error {
	lba, err := fs.takeHead()
	if err != nil {
		if errors.Is(err, ErrMediumFull) {
			fs.errorf("no more space available for file %d", h.id)
		}
		return err
	}

	fs.debugf(2, "overwriting block %d", lba)

	if err := fs.writePayload(lba, h.tail); err != nil {
		return err
	}

	if h.first.IsNull() {
		h.first = lba
	}
	h.last = lba
	h.stored += len(h.tail)
	h.tail = h.tail[:0]

	return nil
}

// Close is the commit point. Medium writes are ordered so that a power
// loss mid-commit leaves either the old file or a state where the new
// chain is owned by the table and simply trails into the free chain,
// never an unreferenced allocation: the chain becomes reachable
// through the table before its terminator is written.
func (fs *FS) Close(h *Handle) error {
	if h == nil {
		return ErrNullHandle
	}
	if h.closed {
		return ErrClosed
	}
	h.closed = true

	if h.mode == eepromfs.ModeRead {
		return nil
	}

	fs.debugf(1, "finalising file %d", h.id)

	// Flush the buffered partial payload. A write handle that was
	// written to but never filled a block still claims one, so a
	// zero-length write leaves a one-block file of size zero. An
	// append that accepted nothing must not allocate: the stored file
	// stays as it is.
	if len(h.tail) > 0 ||
		(h.dirty && h.first.IsNull() && h.mode == eepromfs.ModeWrite) {
		if err := fs.flush(h); err != nil && !errors.Is(err, ErrMediumFull) {
			return err
		}
	}

	if h.first.IsNull() {
		// Nothing reached the medium; the table keeps its old state.
		return nil
	}

	payload := fs.cfg.PayloadSize()
	old := fs.table[h.id]

	// A file deleted while the handle was open has nothing to retain.
	kept := 0
	if h.mode == eepromfs.ModeAppend && !old.head.IsNull() {
		kept = h.base / payload
	}
	size := kept*payload + h.stored

	if h.mode == eepromfs.ModeAppend && kept > 0 {
		// The stored chain keeps its head; the new chain is spliced on
		// and only the size field changes. With a partial stored tail
		// the splice lands on the tail's predecessor (the tail's bytes
		// already head the new chain) and the stale tail block is
		// freed once the commit is ordered.
		cut := old.head
		for i := 0; i < kept-1; i++ {
			next, err := fs.readNext(cut)
			if err != nil {
				return err
			}
			cut = next
		}

		stale := eepromfs.NullLBA
		if h.base%payload > 0 {
			next, err := fs.readNext(cut)
			if err != nil {
				return err
			}
			stale = next
		}

		fs.debugf(2, "appending block %d to block %d", h.first, cut)
		if err := fs.relink(cut, h.first); err != nil {
			return err
		}

		fs.table[h.id] = fileAlloc{size: uint16(size), head: old.head}
		if err := fs.mirrorSlot(int(h.id)); err != nil {
			return err
		}
		if err := fs.mirrorFreeHead(); err != nil {
			return err
		}

		fs.debugf(2, "marking end of file %d", h.id)
		if err := fs.relink(h.last, eepromfs.NullLBA); err != nil {
			return err
		}

		if !stale.IsNull() {
			if err := fs.unlink(stale); err != nil {
				return err
			}
		}
	} else {
		// The new chain supersedes the stored one entirely. The table
		// takes ownership of the new chain before the old one is
		// freed, so a crash in between leaks the old chain rather
		// than leaving it reachable from both the slot and the free
		// list.
		if err := fs.link(h, size); err != nil {
			return err
		}

		fs.debugf(2, "marking end of file %d", h.id)
		if err := fs.relink(h.last, eepromfs.NullLBA); err != nil {
			return err
		}

		if !old.head.IsNull() {
			if err := fs.unlink(old.head); err != nil {
				return err
			}
		}
	}

	fs.debugf(1, "file %d successfully finalised", h.id)
	return nil
}

// link points the table entry at the accumulated chain and mirrors the
// entry and the free head, in that order.
func (fs *FS) link(h *Handle, size int) error {
	if !fs.validLBA(h.first) {
		fs.errorf("cannot link file %d to invalid block %d", h.id, h.first)
		return errors.Wrapf(ErrOutOfRange, "block %d", h.first)
	}

	fs.debugf(1, "linking file %d to block %d", h.id, h.first)

	fs.table[h.id] = fileAlloc{size: uint16(size), head: h.first}
	if err := fs.mirrorSlot(int(h.id)); err != nil {
		return err
	}
	if err := fs.mirrorFreeHead(); err != nil {
		return err
	}

	fs.debugf(1, "link successful")
	return nil
}

// Abort rolls a write or append back: the blocks the handle drew are
// returned to the free chain and the table is left untouched. The
// advanced free head is persisted first, so a power loss mid-abort
// orphans at most the handle's own blocks.
func (fs *FS) Abort(h *Handle) error {
	if h == nil {
		return ErrNullHandle
	}
	if h.closed {
		return ErrClosed
	}
	h.closed = true

	if h.mode == eepromfs.ModeRead || h.first.IsNull() {
		return nil
	}

	fs.debugf(1, "rolling back file %d", h.id)

	if err := fs.mirrorFreeHead(); err != nil {
		return err
	}
	if err := fs.relink(h.last, eepromfs.NullLBA); err != nil {
		return err
	}
	if err := fs.unlink(h.first); err != nil {
		return err
	}

	fs.debugf(1, "rollback successful")
	return nil
}
