package fs

import (
	"encoding/binary"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Chain primitives. Outside of Format and Wipe these are the only
// mutating operations applied to data blocks: a block's payload and
// its link field are written separately, never together, so a block
// that stays in place is never rewritten wholesale. A full format does
// rewrite every block in its entirety.

func (fs *FS) validLBA(l eepromfs.LBA) bool {
	return l >= 0 && int(l) < fs.cfg.NumBlocks()
}

// readNext returns the link field of block l.
func (fs *FS) readNext(l eepromfs.LBA) (eepromfs.LBA, error) {
	if !fs.validLBA(l) {
		return eepromfs.NullLBA, errors.Wrapf(ErrOutOfRange, "block %d", l)
	}

	var buf [eepromfs.LBASize]byte
	if _, err := fs.m.ReadAt(buf[:], fs.cfg.blockPtr(l)); err != nil {
		return eepromfs.NullLBA, errors.Wrapf(err, "read link of block %d", l)
	}

	return eepromfs.LBA(binary.LittleEndian.Uint16(buf[:])), nil
}

// relink overwrites only the link field of block l.
func (fs *FS) relink(l, target eepromfs.LBA) error {
	if !fs.validLBA(l) {
		fs.errorf("attempted to write to invalid block %d", l)
		return errors.Wrapf(ErrOutOfRange, "block %d", l)
	}
	if !target.IsNull() && !fs.validLBA(target) {
		fs.errorf("attempted to relink to invalid block %d", target)
		return errors.Wrapf(ErrOutOfRange, "target %d", target)
	}

	fs.debugf(3, "relinking block %d -> %d", l, target)

	var buf [eepromfs.LBASize]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(target))
	if _, err := fs.m.WriteAt(buf[:], fs.cfg.blockPtr(l)); err != nil {
		return errors.Wrapf(err, "relink block %d", l)
	}

	return nil
}

// writePayload overwrites the first len(p) payload bytes of block l,
// leaving its link field intact.
func (fs *FS) writePayload(l eepromfs.LBA, p []byte) error {
	if !fs.validLBA(l) {
		fs.errorf("attempted to write to invalid block %d", l)
		return errors.Wrapf(ErrOutOfRange, "block %d", l)
	}
	if len(p) > fs.cfg.PayloadSize() {
		p = p[:fs.cfg.PayloadSize()]
	}
	if len(p) == 0 {
		return nil
	}

	if _, err := fs.m.WriteAt(p, fs.cfg.blockPtr(l)+eepromfs.LBASize); err != nil {
		return errors.Wrapf(err, "write payload of block %d", l)
	}

	return nil
}

// readPayload fills p from the payload of block l.
func (fs *FS) readPayload(l eepromfs.LBA, p []byte) error {
	if !fs.validLBA(l) {
		return errors.Wrapf(ErrOutOfRange, "block %d", l)
	}
	if len(p) > fs.cfg.PayloadSize() {
		p = p[:fs.cfg.PayloadSize()]
	}

	if _, err := fs.m.ReadAt(p, fs.cfg.blockPtr(l)+eepromfs.LBASize); err != nil {
		return errors.Wrapf(err, "read payload of block %d", l)
	}

	return nil
}

// tailOf follows links from l and returns the block whose link is the
// null sentinel. The walk is bounded by the block count so a corrupted
// cyclic chain cannot hang the engine.
func (fs *FS) tailOf(l eepromfs.LBA) (eepromfs.LBA, error) {
	if !fs.validLBA(l) {
		fs.errorf("block %d is not part of a block chain", l)
		return eepromfs.NullLBA, errors.Wrapf(ErrOutOfRange, "block %d", l)
	}

	fs.debugf(3, "searching for last block in chain")

	for steps := 0; steps <= fs.cfg.NumBlocks(); steps++ {
		next, err := fs.readNext(l)
		if err != nil {
			return eepromfs.NullLBA, err
		}
		fs.debugf(4, "checking block %d", l)
		if next.IsNull() {
			fs.debugf(3, "last block in chain: %d", l)
			return l, nil
		}
		l = next
	}

	return eepromfs.NullLBA, errors.Wrapf(ErrOutOfRange, "chain from block %d does not terminate", l)
}

// Free-list manager. The free chain is threaded through the same link
// fields as file chains; its head lives in the table's trailing slot.

// takeHead removes and returns the free-chain head. The taken block's
// link field keeps its old value; callers rely on that (see Write).
// Only the cached free head moves here; the medium copy is mirrored
// at commit.
func (fs *FS) takeHead() (eepromfs.LBA, error) {
	head := fs.freeHead()
	if head.IsNull() {
		return eepromfs.NullLBA, ErrMediumFull
	}
	if !fs.validLBA(head) {
		fs.errorf("attempted to write to invalid block %d", head)
		return eepromfs.NullLBA, errors.Wrapf(ErrOutOfRange, "free head %d", head)
	}

	next, err := fs.readNext(head)
	if err != nil {
		return eepromfs.NullLBA, err
	}
	fs.setFreeHead(next)

	fs.debugf(3, "next free block: %d", next)

	return head, nil
}

// unlink returns the chain starting at l to the free list by linking
// it after the current free tail. The chain must already terminate at
// the null sentinel, so no walk of the returned blocks is needed. With
// an exhausted free list the chain becomes the new free head instead.
func (fs *FS) unlink(l eepromfs.LBA) error {
	if !fs.validLBA(l) {
		fs.errorf("cannot unlink invalid block %d", l)
		return errors.Wrapf(ErrOutOfRange, "block %d", l)
	}

	fs.debugf(1, "unlinking block %d", l)

	if fs.freeHead().IsNull() {
		fs.setFreeHead(l)
		if err := fs.mirrorFreeHead(); err != nil {
			return err
		}
		fs.debugf(1, "unlink successful")
		return nil
	}

	tail, err := fs.tailOf(fs.freeHead())
	if err != nil {
		return err
	}
	if err := fs.relink(tail, l); err != nil {
		return err
	}

	fs.debugf(1, "unlink successful")
	return nil
}
