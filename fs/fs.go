// Package fs implements a miniature wear-levelling filesystem for
// small byte-addressable non-volatile media. Files are numbered slots
// holding chains of fixed-size blocks; a statically placed allocation
// table maps each slot to its chain head, and unused blocks hang off a
// free chain threaded through the same link fields.
package fs

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// FS is one mounted filesystem. It is not safe for concurrent use;
// callers needing that must serialize externally.
type FS struct {
	cfg Config
	m   eepromfs.Medium

	// Cached allocation table, MaxFiles+1 entries. The trailing entry's
	// head field is the free-chain head.
	table []fileAlloc

	debug int
	log   eepromfs.LogFunc
}

// New binds a filesystem to a medium. The medium is not touched until
// Init or Format.
func New(m eepromfs.Medium, cfg Config) (*FS, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if cfg.Start+cfg.Size > m.Size() {
		return nil, errors.Wrap(ErrGeometry, "medium smaller than configured region")
	}

	return &FS{
		cfg:   cfg,
		m:     m,
		table: make([]fileAlloc, cfg.MaxFiles+1),
		log:   stderrLog,
	}, nil
}

// Config returns the bound geometry.
func (fs *FS) Config() Config { return fs.cfg }

// Init reads the stored metadata, quick-formats if it does not match
// the configured geometry, and loads the allocation table.
func (fs *FS) Init() error {
	fs.debugf(1, "initialising filesystem")

	fs.debugf(2, "loading metadata")
	stored, err := fs.readMeta()
	if err != nil {
		return err
	}

	if stored != fs.meta() {
		if err := fs.Format(FormatQuick); err != nil {
			return err
		}
	}

	fs.debugf(2, "loading file allocation table")
	if err := fs.loadTable(); err != nil {
		return err
	}

	fs.debugf(3, "next free block: %d", fs.freeHead())
	fs.debugf(1, "filesystem initialised")

	return nil
}

// SetDebug sets the diagnostic verbosity, 0 (errors only) to 4.
func (fs *FS) SetDebug(level int) {
	if level < 0 {
		level = 0
	}
	if level > 4 {
		level = 4
	}
	fs.debug = level
}

// SetLogger installs the diagnostic sink. A nil sink restores the
// stderr default.
func (fs *FS) SetLogger(log eepromfs.LogFunc) {
	if log == nil {
		log = stderrLog
	}
	fs.log = log
}

func (fs *FS) errorf(format string, args ...interface{}) {
	fs.log(0, format, args...)
}

func (fs *FS) debugf(level int, format string, args ...interface{}) {
	if fs.debug >= level {
		fs.log(level, format, args...)
	}
}

func stderrLog(level int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
