package sse

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8Stream decodes UTF-8 incrementally. Incomplete multi-byte sequences at
// the end of a chunk are held until the next chunk completes them.
type utf8Stream struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newUTF8Stream() *utf8Stream {
	return &utf8Stream{
		t:   unicode.UTF8.NewDecoder(),
		dst: make([]byte, 8192),
	}
}

// decode converts chunk to text. Ill-formed bytes become U+FFFD.
func (s *utf8Stream) decode(chunk []byte, atEOF bool) []byte {
	src := chunk
	if len(s.pending) > 0 {
		src = append(s.pending, chunk...)
		s.pending = nil
	}
	out := make([]byte, 0, len(src))
	for {
		nDst, nSrc, err := s.t.Transform(s.dst, src, atEOF)
		out = append(out, s.dst[:nDst]...)
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		if errors.Is(err, transform.ErrShortSrc) && len(src) > 0 {
			s.pending = append([]byte(nil), src...)
		}
		break
	}
	return out
}

// reset drops any held partial sequence.
func (s *utf8Stream) reset() int {
	n := len(s.pending)
	s.pending = nil
	s.t.Reset()
	return n
}
