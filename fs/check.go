package fs

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Check audits the on-medium state against the structural invariants:
// every block belongs to exactly one chain (a file's or the free
// chain), every chain terminates, each file's chain length agrees with
// its stored size, and the cached table matches the medium copy. All
// violations are reported, not just the first.
func (fs *FS) Check() error {
	var errs error

	const unowned = -1
	owner := make([]int, fs.cfg.NumBlocks())
	for i := range owner {
		owner[i] = unowned
	}

	walk := func(head eepromfs.LBA, who int, limit int) int {
		n := 0
		cur := head
		for !cur.IsNull() {
			if !fs.validLBA(cur) {
				errs = multierr.Append(errs, errors.Wrapf(ErrOutOfRange, "chain %d: block %d", who, cur))
				return n
			}
			if owner[cur] != unowned {
				errs = multierr.Append(errs, errors.Errorf("block %d linked by both chain %d and chain %d", cur, owner[cur], who))
				return n
			}
			owner[cur] = who
			n++
			if n > limit {
				errs = multierr.Append(errs, errors.Errorf("chain %d exceeds %d blocks without terminating", who, limit))
				return n
			}
			next, err := fs.readNext(cur)
			if err != nil {
				errs = multierr.Append(errs, err)
				return n
			}
			cur = next
		}
		return n
	}

	payload := fs.cfg.PayloadSize()
	for f := 0; f < fs.cfg.MaxFiles; f++ {
		a := fs.table[f]
		if a.head.IsNull() {
			if a.size != 0 {
				errs = multierr.Append(errs, errors.Errorf("file %d: empty slot with size %d", f, a.size))
			}
			continue
		}

		n := walk(a.head, f, fs.cfg.MaxBlocksPerFile)

		want := (int(a.size) + payload - 1) / payload
		if a.size == 0 {
			// An empty file still holds one block.
			want = 1
		}
		if n != want {
			errs = multierr.Append(errs, errors.Errorf("file %d: size %d wants %d blocks, chain has %d", f, a.size, want, n))
		}
	}

	// The free chain may legally be empty only when every block is
	// owned by a file.
	walk(fs.freeHead(), fs.cfg.MaxFiles, fs.cfg.NumBlocks())

	for lba, who := range owner {
		if who == unowned {
			errs = multierr.Append(errs, errors.Errorf("block %d is orphaned", lba))
		}
	}

	// The cached table must be byte-identical to the medium copy
	// outside the interior of write and delete.
	stored := make([]byte, (fs.cfg.MaxFiles+1)*allocEntrySize)
	if _, err := fs.m.ReadAt(stored, fs.slotOffset(0)); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "read stored table"))
	} else {
		for i, a := range fs.table {
			if got := decodeAlloc(stored[i*allocEntrySize:]); got != a {
				errs = multierr.Append(errs, errors.Errorf("table slot %d: cached (%d, %d), stored (%d, %d)", i, a.size, a.head, got.size, got.head))
			}
		}
	}

	return errs
}

// FreeBlocks counts the blocks on the free chain.
func (fs *FS) FreeBlocks() (int, error) {
	n := 0
	cur := fs.freeHead()
	for !cur.IsNull() {
		if !fs.validLBA(cur) {
			return n, errors.Wrapf(ErrOutOfRange, "free chain: block %d", cur)
		}
		n++
		if n > fs.cfg.NumBlocks() {
			return n, errors.Wrap(ErrOutOfRange, "free chain does not terminate")
		}
		next, err := fs.readNext(cur)
		if err != nil {
			return n, err
		}
		cur = next
	}
	return n, nil
}
