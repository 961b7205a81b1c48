package expander

import (
	"errors"
	"unicode/utf8"
)

// ErrShortCodeFull is returned when a character does not fit the buffer.
var ErrShortCodeFull = errors.New("expander: short code buffer full")

// ShortCode is a fixed-capacity UTF-8 buffer. Capacity counts bytes and
// includes the terminator slot, so at most Cap()-1 bytes are stored.
type ShortCode struct {
	buf []byte
	max int
}

// NewShortCode creates an empty buffer holding up to capacity-1 bytes.
func NewShortCode(capacity int) ShortCode {
	n := max(capacity-1, 0)
	return ShortCode{buf: make([]byte, 0, n), max: n}
}

// Append adds r, or returns ErrShortCodeFull leaving the buffer unchanged.
func (s *ShortCode) Append(r rune) error {
	if !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	if len(s.buf)+utf8.RuneLen(r) > s.max {
		return ErrShortCodeFull
	}
	s.buf = utf8.AppendRune(s.buf, r)
	return nil
}

// Backspace removes the last character, all of its bytes, and reports
// whether anything was removed.
func (s *ShortCode) Backspace() bool {
	if len(s.buf) == 0 {
		return false
	}
	_, size := utf8.DecodeLastRune(s.buf)
	s.buf = s.buf[:len(s.buf)-size]
	return true
}

// Set replaces the contents with code.
func (s *ShortCode) Set(code string) error {
	if len(code) > s.max {
		return ErrShortCodeFull
	}
	s.buf = append(s.buf[:0], code...)
	return nil
}

func (s *ShortCode) Reset()         { s.buf = s.buf[:0] }
func (s *ShortCode) String() string { return string(s.buf) }

// Len returns the stored length in bytes.
func (s *ShortCode) Len() int { return len(s.buf) }

// Chars returns the stored length in characters.
func (s *ShortCode) Chars() int { return utf8.RuneCount(s.buf) }

// Cap returns the capacity including the terminator slot.
func (s *ShortCode) Cap() int { return s.max + 1 }
