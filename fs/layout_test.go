package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
	"github.com/CJxD/avr-eeprom-fs/medium"
)

func TestDefaultGeometry(t *testing.T) {
	r := require.New(t)
	c := DefaultConfig

	r.Equal(int64(10), c.tableOffset())
	r.Equal(int64(130), c.dataOffset())
	r.Equal(59, c.NumBlocks())
	r.Equal(30, c.PayloadSize())
	r.Equal(240, c.MaxFileSize())

	r.Equal(int64(130), c.blockPtr(0))
	r.Equal(int64(130+58*32), c.blockPtr(58))
}

func TestConfigCheck(t *testing.T) {
	bad := []Config{
		{Start: 0, Size: 2048, BlockSize: 2, MaxFiles: 29, MaxBlocksPerFile: 8},
		{Start: 0, Size: 64, BlockSize: 32, MaxFiles: 29, MaxBlocksPerFile: 8},
		{Start: 0, Size: 2048, BlockSize: 32, MaxFiles: 0, MaxBlocksPerFile: 8},
		{Start: 0, Size: 2048, BlockSize: 32, MaxFiles: 29, MaxBlocksPerFile: 0},
		{Start: 1 << 20, Size: 2048, BlockSize: 32, MaxFiles: 29, MaxBlocksPerFile: 8},
	}

	for _, cfg := range bad {
		_, err := New(medium.NewMem(1<<21), cfg)
		require.ErrorIs(t, err, ErrGeometry, "config %+v", cfg)
	}

	// A medium smaller than the region is rejected too.
	_, err := New(medium.NewMem(512), DefaultConfig)
	require.ErrorIs(t, err, ErrGeometry)
}

// Init on a blank medium formats it.
func TestInitFormatsBlankMedium(t *testing.T) {
	r := require.New(t)

	fsys, err := New(medium.NewMem(DefaultConfig.Size), DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Init())

	stored, err := fsys.readMeta()
	r.NoError(err)
	r.Equal(fsys.meta(), stored)

	freeOp{exp: 59}.Do(t, fsys)
	checkOp{}.Do(t, fsys)
}

// Init on a formatted medium loads the existing state.
func TestInitPreservesExistingState(t *testing.T) {
	r := require.New(t)

	m := medium.NewMem(DefaultConfig.Size)

	fsys, err := New(m, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Init())
	storeOp{id: 12, data: pattern(45), expN: -1}.Do(t, fsys)

	// A second engine over the same medium sees the file.
	again, err := New(m, DefaultConfig)
	r.NoError(err)
	r.NoError(again.Init())

	readOp{id: 12, exp: pattern(45)}.Do(t, again)
	checkOp{}.Do(t, again)
}

// A geometry change makes the stored metadata mismatch, and Init
// reformats.
func TestInitReformatsOnGeometryChange(t *testing.T) {
	r := require.New(t)

	m := medium.NewMem(DefaultConfig.Size)

	fsys, err := New(m, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Init())
	storeOp{id: 12, data: pattern(45), expN: -1}.Do(t, fsys)

	cfg := DefaultConfig
	cfg.MaxBlocksPerFile = 4

	again, err := New(m, cfg)
	r.NoError(err)
	r.NoError(again.Init())

	_, err = again.Stat(12)
	r.ErrorIs(err, ErrNotFound)
	checkOp{}.Do(t, again)
}

func TestAllocCodec(t *testing.T) {
	r := require.New(t)

	for _, a := range []fileAlloc{
		{size: 0, head: eepromfs.NullLBA},
		{size: 14, head: 58},
		{size: 240, head: 0},
	} {
		var buf [allocEntrySize]byte
		a.encode(buf[:])
		r.Equal(a, decodeAlloc(buf[:]))
	}

	// The null sentinel keeps its on-medium bit pattern.
	var buf [allocEntrySize]byte
	fileAlloc{size: 0, head: eepromfs.NullLBA}.encode(buf[:])
	r.Equal([]byte{0x00, 0x00, 0xff, 0xff}, buf[:])
}
