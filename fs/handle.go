package fs

import (
	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Handle is the per-open bookkeeping for one file. Handles are plain
// values owned by the caller; Close commits and consumes them, Abort
// rolls back and consumes them. A handle that is neither closed nor
// aborted leaves the allocation table untouched but loses the blocks
// it drew from the free chain until the next format.
type Handle struct {
	id   eepromfs.FileID
	mode eepromfs.Mode

	// base is the stored file size at open time (reads and appends).
	base int

	// written counts caller bytes accepted by Write.
	written int

	// First and last block of the chain being accumulated. For a read
	// handle first is the stored chain head.
	first, last eepromfs.LBA

	// tail buffers the trailing partial payload until it fills or the
	// handle commits. On an append it starts with the stored tail's
	// bytes, so no block but the last ends up partially filled.
	tail []byte

	// stored counts bytes flushed into taken blocks, absorbed stored
	// tail bytes included.
	stored int

	dirty    bool
	absorbed bool
	closed   bool
}

// ID returns the (wrapped) identifier the handle is bound to.
func (h *Handle) ID() eepromfs.FileID { return h.id }

// Mode returns what the handle may do.
func (h *Handle) Mode() eepromfs.Mode { return h.mode }

// Size returns the stored size for a read handle, or the running byte
// count for a write or append handle.
func (h *Handle) Size() int { return h.base + h.written }

// OpenRead prepares a file for reading. A missing file is reported
// through the diagnostic sink; the returned handle is still valid to
// pass around, and Read on it fails as a null handle.
func (fs *FS) OpenRead(id eepromfs.FileID) *Handle {
	f := fs.wrap(id)
	fs.debugf(1, "preparing file %d for reading", f)

	h := &Handle{
		id:    f,
		mode:  eepromfs.ModeRead,
		base:  int(fs.table[f].size),
		first: fs.table[f].head,
		last:  eepromfs.NullLBA,
	}

	if h.first.IsNull() {
		fs.errorf("file %d not found", f)
	} else {
		fs.debugf(1, "file ready")
	}

	return h
}

// OpenWrite prepares a file for writing from scratch. The stored file,
// if any, stays readable until the handle commits.
func (fs *FS) OpenWrite(id eepromfs.FileID) *Handle {
	f := fs.wrap(id)
	fs.debugf(1, "preparing file %d for writing", f)

	h := &Handle{
		id:    f,
		mode:  eepromfs.ModeWrite,
		first: eepromfs.NullLBA,
		last:  eepromfs.NullLBA,
	}

	fs.debugf(1, "file ready")
	return h
}

// OpenAppend prepares a file for appending. first and last track the
// new chain only; the stored chain is looked up from the table when
// the handle commits.
func (fs *FS) OpenAppend(id eepromfs.FileID) *Handle {
	f := fs.wrap(id)
	fs.debugf(1, "preparing file %d for appending", f)

	h := &Handle{
		id:    f,
		mode:  eepromfs.ModeAppend,
		base:  int(fs.table[f].size),
		first: eepromfs.NullLBA,
		last:  eepromfs.NullLBA,
	}

	fs.debugf(1, "file ready")
	return h
}
