package csv

// streaming.go holds the io.Reader wrappers applied under the csv reader:
//
//   - bomSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - sanitizingReader: replaces invalid UTF-8 bytes with '?' on the fly
//   - countingReader: tracks bytes consumed, for progress logging
//
// All three operate on fixed-size buffers so a multi-gigabyte source never
// has to be held in memory for cleanup.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// bomSkippingReader skips the UTF-8 byte order mark commonly written by
// Windows spreadsheet exports.
type bomSkippingReader struct {
	reader  *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{reader: bufio.NewReader(r)}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.reader.Peek(3)
		if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			if _, err := b.reader.Discard(3); err != nil {
				return 0, err
			}
		}
	}
	return b.reader.Read(p)
}

// sanitizingReader replaces invalid UTF-8 sequences with '?' as data flows
// through. A valid multi-byte rune split across two reads is held back in
// pending until the rest arrives, so it is never corrupted.
type sanitizingReader struct {
	reader  io.Reader
	pending []byte
}

func newSanitizingReader(r io.Reader) *sanitizingReader {
	return &sanitizingReader{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *sanitizingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	// Fast path: pure ASCII needs no inspection.
	if allASCII(p[:n]) {
		return n, err
	}

	out := s.sanitize(p[:n], err == io.EOF)
	if out == 0 && err == nil {
		// Everything read so far is an incomplete tail; pull more.
		return s.Read(p)
	}
	return out, err
}

// sanitize rewrites data in place, returning the number of output bytes.
// When not at EOF, an incomplete trailing sequence is stashed in pending
// rather than replaced.
func (s *sanitizingReader) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			if !atEOF && incompleteTail(data[r:]) {
				s.pending = append(s.pending, data[r:]...)
				return w
			}
			// '?' keeps the output no longer than the input, which an
			// in-place rewrite requires.
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// incompleteTail reports whether tail could be the prefix of a valid
// multi-byte rune whose remaining bytes have not been read yet.
func incompleteTail(tail []byte) bool {
	if len(tail) == 0 || len(tail) >= utf8.UTFMax {
		return false
	}
	need := leadByteLen(tail[0])
	if need <= len(tail) {
		return false
	}
	for _, b := range tail[1:] {
		if b&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// leadByteLen returns the sequence length a UTF-8 lead byte announces,
// or 0 for bytes that cannot start a sequence.
func leadByteLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func allASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// countingReader tracks bytes consumed from the sanitized stream.
type countingReader struct {
	reader    io.Reader
	bytesRead int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.bytesRead += int64(n)
	return n, err
}
