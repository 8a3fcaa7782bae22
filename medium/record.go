package medium

import (
	eepromfs "github.com/CJxD/avr-eeprom-fs"
)

// Span is a half-open byte range [Off, Off+Len) on the medium.
type Span struct {
	Off int64
	Len int
}

// End returns the first offset past the span.
func (s Span) End() int64 { return s.Off + int64(s.Len) }

// Recorder wraps a Medium and records every mutating access, so tests
// can account for wear; the eefs tool does not use it. For UpdateAt
// only the byte runs that actually hit the medium are recorded.
type Recorder struct {
	eepromfs.Medium

	writes []Span
}

var _ eepromfs.Medium = (*Recorder)(nil)

// NewRecorder wraps m.
func NewRecorder(m eepromfs.Medium) *Recorder {
	return &Recorder{Medium: m}
}

// Writes returns the recorded spans in issue order.
func (r *Recorder) Writes() []Span { return r.writes }

// Reset drops the recorded spans.
func (r *Recorder) Reset() { r.writes = nil }

// Touched reports whether any recorded write overlaps [off, off+n).
func (r *Recorder) Touched(off int64, n int) bool {
	for _, s := range r.writes {
		if s.Off < off+int64(n) && off < s.End() {
			return true
		}
	}
	return false
}

func (r *Recorder) WriteAt(p []byte, off int64) (int, error) {
	n, err := r.Medium.WriteAt(p, off)
	if n > 0 {
		r.writes = append(r.writes, Span{Off: off, Len: n})
	}
	return n, err
}

func (r *Recorder) UpdateAt(p []byte, off int64) (int, error) {
	// Snapshot the current contents to find which runs differ; those
	// are the bytes the wrapped update will rewrite.
	cur := make([]byte, len(p))
	if _, err := r.Medium.ReadAt(cur, off); err != nil {
		return 0, err
	}

	n, err := r.Medium.UpdateAt(p, off)

	for i := 0; i < n; {
		if cur[i] == p[i] {
			i++
			continue
		}
		j := i
		for j < n && cur[j] != p[j] {
			j++
		}
		r.writes = append(r.writes, Span{Off: off + int64(i), Len: j - i})
		i = j
	}

	return n, err
}

func (r *Recorder) ZeroDword(off int64) error {
	err := r.Medium.ZeroDword(off)
	if err == nil {
		r.writes = append(r.writes, Span{Off: off, Len: 4})
	}
	return err
}
