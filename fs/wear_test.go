package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
	"github.com/CJxD/avr-eeprom-fs/medium"
)

// spanWithin reports whether s falls entirely inside one of the
// allowed ranges.
func spanWithin(s medium.Span, allowed []medium.Span) bool {
	for _, a := range allowed {
		if s.Off >= a.Off && s.End() <= a.End() {
			return true
		}
	}
	return false
}

// A fresh write may touch only the taken blocks' payloads, the final
// block's link field, the file's table slot and the free-head slot.
func TestWriteWearDiscipline(t *testing.T) {
	r := require.New(t)

	rec := medium.NewRecorder(medium.NewMem(DefaultConfig.Size))
	fsys, err := New(rec, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Format(FormatQuick))

	rec.Reset()
	storeOp{id: 6, data: pattern(60), expN: -1}.Do(t, fsys)

	cfg := fsys.cfg
	first := eepromfs.LBA(cfg.NumBlocks() - 1) // free head after format
	second := first - 1

	allowed := []medium.Span{
		{Off: cfg.blockPtr(first) + eepromfs.LBASize, Len: cfg.PayloadSize()},
		{Off: cfg.blockPtr(second) + eepromfs.LBASize, Len: cfg.PayloadSize()},
		{Off: cfg.blockPtr(second), Len: eepromfs.LBASize}, // terminator
		{Off: fsys.slotOffset(6), Len: allocEntrySize},
		{Off: fsys.slotOffset(cfg.MaxFiles), Len: allocEntrySize},
	}

	for _, s := range rec.Writes() {
		r.True(spanWithin(s, allowed), "write outside the expected ranges: %+v", s)
	}

	// Untouched neighbours stay untouched.
	r.False(rec.Touched(cfg.blockPtr(second-1), cfg.BlockSize))
	r.False(rec.Touched(fsys.slotOffset(5), allocEntrySize))
	r.False(rec.Touched(cfg.Start+metaOffset, metaSize))
}

// An aligned append rewrites no stored payload: only the new block,
// the old tail's link field, the slot and the free head move.
func TestAppendWearDiscipline(t *testing.T) {
	r := require.New(t)

	rec := medium.NewRecorder(medium.NewMem(DefaultConfig.Size))
	fsys, err := New(rec, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Format(FormatQuick))

	storeOp{id: 6, data: pattern(60), expN: -1}.Do(t, fsys)

	cfg := fsys.cfg
	first := eepromfs.LBA(cfg.NumBlocks() - 1)
	second := first - 1
	third := second - 1

	rec.Reset()
	storeOp{id: 6, data: pattern(90)[60:], append: true, expN: -1}.Do(t, fsys)

	allowed := []medium.Span{
		{Off: cfg.blockPtr(third) + eepromfs.LBASize, Len: cfg.PayloadSize()},
		{Off: cfg.blockPtr(second), Len: eepromfs.LBASize}, // splice onto old tail
		{Off: cfg.blockPtr(third), Len: eepromfs.LBASize},  // terminator
		{Off: fsys.slotOffset(6), Len: allocEntrySize},
		{Off: fsys.slotOffset(cfg.MaxFiles), Len: allocEntrySize},
	}

	for _, s := range rec.Writes() {
		r.True(spanWithin(s, allowed), "write outside the expected ranges: %+v", s)
	}

	// The stored payloads were not rewritten.
	r.False(rec.Touched(cfg.blockPtr(first)+eepromfs.LBASize, cfg.PayloadSize()))
	r.False(rec.Touched(cfg.blockPtr(second)+eepromfs.LBASize, cfg.PayloadSize()))

	readOp{id: 6, exp: pattern(90)}.Do(t, fsys)
	checkOp{}.Do(t, fsys)
}
