package fs

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
	"github.com/CJxD/avr-eeprom-fs/medium"
)

func freshFS(t *testing.T) *FS {
	t.Helper()

	fsys, err := New(medium.NewMem(DefaultConfig.Size), DefaultConfig)
	require.NoError(t, err)
	require.NoError(t, fsys.Format(FormatQuick))
	return fsys
}

// Any byte sequence within the block budget survives a write/read
// round trip, at every block-boundary-adjacent size.
func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 14, 29, 30, 31, 59, 60, 61, 119, 120, 121, 239, 240}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("%dB", size), func(t *testing.T) {
			r := require.New(t)
			fsys := freshFS(t)
			data := pattern(size)

			h := fsys.OpenWrite(11)
			n, err := fsys.Write(h, data)
			r.NoError(err)
			r.Equal(size, n)
			r.NoError(fsys.Close(h))

			readOp{id: 11, exp: data}.Do(t, fsys)
			blocksOp{id: 11, exp: max(1, (size+29)/30)}.Do(t, fsys)
			checkOp{}.Do(t, fsys)
		})
	}
}

// Writing b1 then appending b2 stores the same bytes as writing b1++b2
// in one call, across the splice, absorb and replace paths.
func TestAppendAssociativity(t *testing.T) {
	pairs := [][2]int{
		{1, 1},
		{12, 15},
		{29, 2},
		{30, 5},
		{30, 30},
		{40, 35},
		{45, 120},
		{60, 60},
		{90, 150},
		{235, 5},
		{0, 17},
	}

	for _, p := range pairs {
		t.Run(fmt.Sprintf("%d+%d", p[0], p[1]), func(t *testing.T) {
			r := require.New(t)
			whole := pattern(p[0] + p[1])
			b1, b2 := whole[:p[0]], whole[p[0]:]

			stepped := freshFS(t)
			storeOp{id: 8, data: b1, expN: -1}.Do(t, stepped)
			storeOp{id: 8, data: b2, append: true, expN: -1}.Do(t, stepped)

			oneshot := freshFS(t)
			storeOp{id: 8, data: whole, expN: -1}.Do(t, oneshot)

			readOp{id: 8, exp: whole}.Do(t, stepped)
			readOp{id: 8, exp: whole}.Do(t, oneshot)

			r.Equal(chainLen(t, oneshot, 8), chainLen(t, stepped, 8))

			checkOp{}.Do(t, stepped)
			checkOp{}.Do(t, oneshot)
		})
	}
}

// A quick format of a quick-formatted medium changes nothing.
func TestFormatIdempotence(t *testing.T) {
	r := require.New(t)

	m := medium.NewMem(DefaultConfig.Size)
	fsys, err := New(m, DefaultConfig)
	r.NoError(err)

	r.NoError(fsys.Format(FormatQuick))
	before := append([]byte(nil), m.Bytes()...)

	r.NoError(fsys.Format(FormatQuick))
	r.Empty(cmp.Diff(before, m.Bytes()), "second quick format changed the medium")
}

// A full format additionally zeroes every payload.
func TestFullFormatZeroesPayloads(t *testing.T) {
	r := require.New(t)

	m := medium.NewMem(DefaultConfig.Size)
	fsys, err := New(m, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Format(FormatQuick))

	storeOp{id: 1, data: pattern(90), expN: -1}.Do(t, fsys)
	r.NoError(fsys.Format(FormatFull))

	payload := make([]byte, fsys.cfg.PayloadSize())
	zero := make([]byte, fsys.cfg.PayloadSize())
	for i := 0; i < fsys.cfg.NumBlocks(); i++ {
		r.NoError(fsys.readPayload(eepromfs.LBA(i), payload))
		r.Equal(zero, payload, "block %d payload not cleared", i)
	}

	freeOp{exp: fsys.cfg.NumBlocks()}.Do(t, fsys)
	checkOp{}.Do(t, fsys)
}

// Wipe leaves nothing but zeroes behind.
func TestWipe(t *testing.T) {
	r := require.New(t)

	m := medium.NewMem(DefaultConfig.Size)
	fsys, err := New(m, DefaultConfig)
	r.NoError(err)
	r.NoError(fsys.Format(FormatQuick))
	storeOp{id: 1, data: pattern(60), expN: -1}.Do(t, fsys)

	r.NoError(fsys.Wipe())
	r.Equal(make([]byte, DefaultConfig.Size), m.Bytes())
}

// Dump renders the whole region, sixteen bytes per row, with stored
// text visible in the ASCII column.
func TestDump(t *testing.T) {
	r := require.New(t)

	fsys := freshFS(t)
	storeOp{id: 6, data: []byte("Hello World!"), expN: -1}.Do(t, fsys)

	var out bytes.Buffer
	r.NoError(fsys.Dump(&out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	r.Len(lines, int(DefaultConfig.Size/16))
	r.True(strings.HasPrefix(lines[0], "0x000 : "), "got %q", lines[0])
	r.Contains(out.String(), "Hello World!")
}
