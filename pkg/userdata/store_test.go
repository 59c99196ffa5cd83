package userdata

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lorabadge/pkg/flash"
)

func TestRecordLayout(t *testing.T) {
	rec := Record{MarkA: MarkerA, MarkB: AppMarker}
	rec.Messages[0] = MustSlot("one")
	rec.Messages[3] = MustSlot("four")
	b, err := rec.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, 322)
	require.Equal(t, []byte{0xBA, AppMarker}, b[:2])
	require.Equal(t, []byte("one"), b[2:5])
	require.Equal(t, byte(0), b[5])
	require.Equal(t, []byte("four"), b[242:246])

	var decoded Record
	require.NoError(t, decoded.UnmarshalBinary(b))
	require.Equal(t, rec, decoded)
}

func TestRecordUnmarshalErrors(t *testing.T) {
	def := DefaultRecord()
	good, _ := def.MarshalBinary()

	rec := Record{}
	require.Equal(t, ErrShortRecord, rec.UnmarshalBinary(good[:100]))
	bad := append([]byte{}, good...)
	bad[1] = 0
	require.Equal(t, ErrBadMarkers, rec.UnmarshalBinary(bad))
	require.Equal(t, Record{}, rec)
}

func TestSlot(t *testing.T) {
	s, err := NewSlot("Hello")
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())
	require.Equal(t, "Hello", s.String())

	full := strings.Repeat("x", SlotSize)
	s, err = NewSlot(full)
	require.NoError(t, err)
	require.Equal(t, full, s.String())

	_, err = NewSlot(full + "y")
	require.True(t, errors.Is(err, ErrParam))

	s, err = NewSlot("")
	require.NoError(t, err)
	require.Equal(t, "", s.String())
}

func TestLoadAbsentCreatesDefault(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	state, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, StateValid, state)
	require.Equal(t, DefaultRecord(), s.Record())
	require.True(t, HasMarkers(fs.Bytes(FileName)))
	require.Len(t, fs.Bytes(FileName), RecordSize)
}

func TestLoadAbsentCreateFails(t *testing.T) {
	fs := flash.NewMemFS()
	fs.FailCreate = true
	state, err := NewStore(fs).Load()
	require.Error(t, err)
	require.Equal(t, StateAbsent, state)
}

func TestLoadCorruptKeepsMemory(t *testing.T) {
	testCases := []struct {
		name    string
		content func([]byte) []byte
	}{
		{"bad markers", func(b []byte) []byte { b[0] = 0xFF; return b }},
		{"empty", func(b []byte) []byte { return nil }},
		{"truncated", func(b []byte) []byte { return b[:RecordSize-1] }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := flash.NewMemFS()
			s := NewStore(fs)
			require.NoError(t, s.SetMessage(1, "in memory"))

			stored := DefaultRecord()
			stored.Messages[0] = MustSlot("on flash")
			b, _ := stored.MarshalBinary()
			fs.SetBytes(FileName, tc.content(b))

			state, err := s.Load()
			require.NoError(t, err)
			require.Equal(t, StateCorrupt, state)
			msg, err := s.Message(1)
			require.NoError(t, err)
			require.Equal(t, "in memory", msg.String())
			require.Equal(t, 0, fs.Creates(FileName))
		})
	}
}

func TestSaveSkipsUnchanged(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	_, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, 1, fs.Creates(FileName))

	require.NoError(t, s.Save())
	require.Equal(t, 1, fs.Creates(FileName))

	require.NoError(t, s.SetMessage(3, "changed"))
	require.NoError(t, s.Save())
	require.Equal(t, 2, fs.Creates(FileName))
	require.NoError(t, s.Save())
	require.Equal(t, 2, fs.Creates(FileName))
}

func TestSaveWithoutFileFails(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	require.NoError(t, s.SetMessage(1, "lost"))
	err := s.Save()
	require.True(t, errors.Is(err, ErrNotInitialized))
	require.Equal(t, 0, fs.Creates(FileName))
	require.Nil(t, fs.Bytes(FileName))
}

func TestSaveWriteFailure(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.SetMessage(2, "x"))
	fs.FailWrite = true
	require.Error(t, s.Save())

	msg, _ := s.Message(2)
	require.Equal(t, "x", msg.String())
}

func TestSaveDumpsEveryAttempt(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	var buf bytes.Buffer
	s.DumpTo = &buf
	dumps := func() int { return strings.Count(buf.String(), "000 Marks: BA 55") }

	require.Error(t, s.Save())
	require.Equal(t, 1, dumps())

	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save())
	require.Equal(t, 2, dumps())

	require.NoError(t, s.SetMessage(4, "dumped"))
	require.NoError(t, s.Save())
	require.Equal(t, 3, dumps())
	require.Contains(t, buf.String(), "242 Message 4: dumped")

	require.NoError(t, s.SetMessage(4, "unwritten"))
	fs.FailWrite = true
	require.Error(t, s.Save())
	require.Equal(t, 4, dumps())
	require.Contains(t, buf.String(), "242 Message 4: unwritten")
}

func TestSetMessageParams(t *testing.T) {
	s := NewStore(flash.NewMemFS())
	for _, slot := range []int{0, 5, -1} {
		err := s.SetMessage(slot, "x")
		require.True(t, errors.Is(err, ErrParam), "slot %d", slot)
	}
	require.True(t, errors.Is(s.SetMessage(1, strings.Repeat("a", 81)), ErrParam))
	require.Equal(t, DefaultRecord(), s.Record())
}

func TestRoundTripAllSlots(t *testing.T) {
	texts := []string{"", "a", "Hello", strings.Repeat("z", SlotSize), "with: colon"}
	for slot := 1; slot <= Slots; slot++ {
		for _, text := range texts {
			fs := flash.NewMemFS()
			s := NewStore(fs)
			_, err := s.Load()
			require.NoError(t, err)
			require.NoError(t, s.SetMessage(slot, text))
			require.NoError(t, s.Save())

			reloaded := NewStore(fs)
			state, err := reloaded.Load()
			require.NoError(t, err)
			require.Equal(t, StateValid, state)
			msg, err := reloaded.Message(slot)
			require.NoError(t, err)
			expected, _ := NewSlot(text)
			require.Equal(t, expected, msg)
		}
	}
}

func TestHelloSurvivesRestart(t *testing.T) {
	fs := flash.NewMemFS()
	s := NewStore(fs)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.SetMessage(2, "Hello"))
	require.NoError(t, s.Save())

	raw := fs.Bytes(FileName)
	restarted := flash.NewMemFS()
	restarted.SetBytes(FileName, raw)

	s = NewStore(restarted)
	state, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, StateValid, state)
	rec := s.Record()
	require.True(t, rec.Valid())
	var padded [SlotSize]byte
	copy(padded[:], "Hello")
	require.Equal(t, Slot(padded), rec.Messages[1])
}

func TestDump(t *testing.T) {
	s := NewStore(flash.NewMemFS())
	var buf bytes.Buffer
	s.Dump(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "000 Marks: BA 55", lines[0])
	require.Equal(t, "002 Message 1: IoT Made Easy!", lines[1])
	require.True(t, strings.HasPrefix(lines[4], "242 Message 4: "))
}
