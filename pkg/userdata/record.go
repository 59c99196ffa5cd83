// Package userdata persists the user editable message slots in a
// single named file on flash, next to (and independent of) the radio
// settings file.
//
// File layout, byte exact, compatible with deployed devices:
//
//	offset 0    marker 0xBA
//	offset 1    application marker
//	offset 2    message 1 (80 bytes, NUL padded)
//	offset 82   message 2
//	offset 162  message 3
//	offset 242  message 4
//	total       322 bytes
package userdata

import (
	"bytes"
	"errors"
	"fmt"
)

// Layout constants.
const (
	MarkerA   byte = 0xBA
	AppMarker byte = 0x55

	SlotSize   = 80
	Slots      = 4
	MarkerSize = 2
	RecordSize = MarkerSize + Slots*SlotSize

	// FileName is the name of the backing file.
	FileName = "USER_FLASH_DATA"
)

var (
	// ErrParam indicates a rejected parameter value.
	ErrParam = errors.New("invalid parameter value")
	// ErrShortRecord indicates fewer than RecordSize bytes.
	ErrShortRecord = errors.New("short record")
	// ErrBadMarkers indicates marker bytes don't match.
	ErrBadMarkers = errors.New("record markers mismatch")
)

// ParamError describes a rejected parameter. It matches ErrParam
// with errors.Is.
type ParamError struct {
	Name   string
	Reason string
}

// Error implements error.
func (e *ParamError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrParam, e.Name, e.Reason)
}

// Unwrap returns ErrParam.
func (e *ParamError) Unwrap() error {
	return ErrParam
}

// Slot is one fixed size message buffer. The text ends at the first
// NUL byte or at SlotSize bytes.
type Slot [SlotSize]byte

// NewSlot copies text into a zero padded Slot.
func NewSlot(text string) (Slot, error) {
	var s Slot
	if len(text) > SlotSize {
		return s, &ParamError{Name: "text", Reason: fmt.Sprintf("longer than %d bytes", SlotSize)}
	}
	copy(s[:], text)
	return s, nil
}

// MustSlot is NewSlot panicking on error, for compiled-in content.
func MustSlot(text string) Slot {
	s, err := NewSlot(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Len is the text length.
func (s *Slot) Len() int {
	if n := bytes.IndexByte(s[:], 0); n >= 0 {
		return n
	}
	return SlotSize
}

// String returns the text.
func (s Slot) String() string {
	return string(s[:s.Len()])
}

// Record is the persisted entity.
type Record struct {
	MarkA    byte
	MarkB    byte
	Messages [Slots]Slot
}

// DefaultMessages are written when the file is first created.
var DefaultMessages = [Slots]string{
	"IoT Made Easy!",
	"Hello from WisBlock",
	"Out for lunch, back soon",
	"Do not disturb",
}

// DefaultRecord returns the compiled-in record.
func DefaultRecord() Record {
	r := Record{MarkA: MarkerA, MarkB: AppMarker}
	for n, text := range DefaultMessages {
		r.Messages[n] = MustSlot(text)
	}
	return r
}

// Valid determines if both markers match.
func (r *Record) Valid() bool {
	return r.MarkA == MarkerA && r.MarkB == AppMarker
}

// HasMarkers checks the leading marker bytes of raw file content.
func HasMarkers(data []byte) bool {
	return len(data) >= MarkerSize && data[0] == MarkerA && data[1] == AppMarker
}

// MarshalBinary encodes the record in file layout.
func (r *Record) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	b[0], b[1] = r.MarkA, r.MarkB
	for n := range r.Messages {
		copy(b[slotOffset(n+1):], r.Messages[n][:])
	}
	return b, nil
}

// UnmarshalBinary decodes file content. Bytes beyond RecordSize are
// ignored. The receiver is untouched on error.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return ErrShortRecord
	}
	if !HasMarkers(data) {
		return ErrBadMarkers
	}
	var rec Record
	rec.MarkA, rec.MarkB = data[0], data[1]
	for n := range rec.Messages {
		off := slotOffset(n + 1)
		copy(rec.Messages[n][:], data[off:off+SlotSize])
	}
	*r = rec
	return nil
}

// slotOffset is the byte offset of a 1-based slot.
func slotOffset(slot int) int {
	return MarkerSize + (slot-1)*SlotSize
}
