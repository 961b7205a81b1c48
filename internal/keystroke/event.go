package keystroke

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// Event types and values from input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvMsc uint16 = 0x04

	SynReport uint16 = 0

	ValueRelease int32 = 0
	ValuePress   int32 = 1
	ValueRepeat  int32 = 2
)

// EventSize is sizeof(struct input_event) on 64-bit Linux.
const EventSize = 24

// ErrShortEvent is returned when a read ends inside an event record.
var ErrShortEvent = errors.New("keystroke: truncated input event")

// InputEvent is one struct input_event record.
type InputEvent struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// MarshalBinary encodes e in the kernel layout: timeval, type, code,
// value. A zero Time is written as zero so the kernel stamps it.
func (e InputEvent) MarshalBinary() ([]byte, error) {
	return e.appendTo(make([]byte, 0, EventSize)), nil
}

func (e InputEvent) appendTo(dst []byte) []byte {
	var sec, usec int64
	if !e.Time.IsZero() {
		sec = e.Time.Unix()
		usec = int64(e.Time.Nanosecond() / 1000)
	}
	dst = binary.NativeEndian.AppendUint64(dst, uint64(sec))
	dst = binary.NativeEndian.AppendUint64(dst, uint64(usec))
	dst = binary.NativeEndian.AppendUint16(dst, e.Type)
	dst = binary.NativeEndian.AppendUint16(dst, e.Code)
	return binary.NativeEndian.AppendUint32(dst, uint32(e.Value))
}

// UnmarshalBinary decodes one record.
func (e *InputEvent) UnmarshalBinary(buf []byte) error {
	if len(buf) < EventSize {
		return ErrShortEvent
	}
	sec := int64(binary.NativeEndian.Uint64(buf[0:8]))
	usec := int64(binary.NativeEndian.Uint64(buf[8:16]))
	e.Time = time.Unix(sec, usec*1000)
	e.Type = binary.NativeEndian.Uint16(buf[16:18])
	e.Code = binary.NativeEndian.Uint16(buf[18:20])
	e.Value = int32(binary.NativeEndian.Uint32(buf[20:24]))
	return nil
}

// ReadEvent reads one full record from r.
func ReadEvent(r io.Reader) (InputEvent, error) {
	var buf [EventSize]byte
	var ev InputEvent
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ev, ErrShortEvent
		}
		return ev, err
	}
	err := ev.UnmarshalBinary(buf[:])
	return ev, err
}
