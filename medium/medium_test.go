package medium

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

func TestMediums(t *testing.T) {
	type testcase struct {
		name string
		run  func(t *testing.T, m eepromfs.Medium)
	}

	var tcs = []testcase{
		{
			name: "set then get",
			run: func(t *testing.T, m eepromfs.Medium) {
				r := require.New(t)

				n, err := m.WriteAt([]byte("test"), 10)
				r.NoError(err)
				r.Equal(4, n)

				buf := make([]byte, 4)
				n, err = m.ReadAt(buf, 10)
				r.NoError(err)
				r.Equal(4, n)
				r.True(bytes.Equal(buf, []byte("test")))
			},
		},
		{
			name: "read past the end",
			run: func(t *testing.T, m eepromfs.Medium) {
				buf := make([]byte, 4)
				_, err := m.ReadAt(buf, m.Size()+2)
				require.Error(t, err)
			},
		},
		{
			name: "update behaves like write",
			run: func(t *testing.T, m eepromfs.Medium) {
				r := require.New(t)

				_, err := m.UpdateAt([]byte("aaaa"), 0)
				r.NoError(err)
				_, err = m.UpdateAt([]byte("abca"), 0)
				r.NoError(err)

				buf := make([]byte, 4)
				_, err = m.ReadAt(buf, 0)
				r.NoError(err)
				r.True(bytes.Equal(buf, []byte("abca")))
			},
		},
		{
			name: "zero dword",
			run: func(t *testing.T, m eepromfs.Medium) {
				r := require.New(t)

				_, err := m.WriteAt([]byte{1, 2, 3, 4, 5}, 16)
				r.NoError(err)
				r.NoError(m.ZeroDword(16))

				buf := make([]byte, 5)
				_, err = m.ReadAt(buf, 16)
				r.NoError(err)
				r.True(bytes.Equal(buf, []byte{0, 0, 0, 0, 5}))
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Run("mem", func(t *testing.T) {
				tc.run(t, NewMem(64))
			})

			t.Run("file", func(t *testing.T) {
				f, err := CreateFile(filepath.Join(t.TempDir(), "img"), 64)
				require.NoError(t, err)
				defer f.Close()

				tc.run(t, f)
			})
		})
	}
}

func TestMemBounds(t *testing.T) {
	r := require.New(t)
	m := NewMem(8)

	// Writes clip at the end of the medium.
	n, err := m.WriteAt([]byte("testtest"), 6)
	r.Equal(2, n)
	r.Equal(io.EOF, err)

	n, err = m.ReadAt(make([]byte, 4), 6)
	r.Equal(2, n)
	r.Equal(io.EOF, err)
}

func TestOpenFileReopens(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "img")

	f, err := CreateFile(path, 128)
	r.NoError(err)
	_, err = f.WriteAt([]byte("persist"), 64)
	r.NoError(err)
	r.NoError(f.Close())

	g, err := OpenFile(path)
	r.NoError(err)
	defer g.Close()

	r.Equal(int64(128), g.Size())

	buf := make([]byte, 7)
	_, err = g.ReadAt(buf, 64)
	r.NoError(err)
	r.True(bytes.Equal(buf, []byte("persist")))
}

// The recorder sees only the bytes an update actually rewrites.
func TestRecorderTracksUpdates(t *testing.T) {
	r := require.New(t)

	rec := NewRecorder(NewMem(32))

	_, err := rec.WriteAt([]byte("aaaaaaaa"), 0)
	r.NoError(err)
	rec.Reset()

	_, err = rec.UpdateAt([]byte("aabbaaca"), 0)
	r.NoError(err)

	r.Equal([]Span{{Off: 2, Len: 2}, {Off: 6, Len: 1}}, rec.Writes())
	r.True(rec.Touched(2, 1))
	r.False(rec.Touched(0, 2))
	r.False(rec.Touched(4, 2))
}
