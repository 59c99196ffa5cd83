package userdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/flash"
	fx "github.com/robotalks/lorabadge/pkg/framework"
)

// State is the outcome of a load attempt.
type State int

// States
const (
	// StateAbsent means no backing file exists and none could be created.
	StateAbsent State = iota
	// StateValid means the record was loaded and is authoritative.
	StateValid
	// StateCorrupt means the file exists but isn't a valid record.
	StateCorrupt
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNotInitialized is returned by Save when the backing file can't be
// read. Save never recreates the file in that case, so a separate
// settings file in the same area is not put at risk by a format.
var ErrNotInitialized = errors.New("user data file not initialized")

const logTag = "[USER_FLASH_DATA] "

// Store keeps the in-memory record and its durable copy in sync.
type Store struct {
	FS   flash.FS
	Name string

	// DumpTo receives the record dump after every save attempt.
	DumpTo io.Writer

	lock   sync.RWMutex
	record Record
}

// NewStore creates a Store holding the default record.
func NewStore(fs flash.FS) *Store {
	return &Store{FS: fs, Name: FileName, record: DefaultRecord()}
}

// Load reads the backing file, creating it with the default record
// when absent. On StateCorrupt the in-memory record is left as is.
func (s *Store) Load() (State, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.readFile()
	if os.IsNotExist(err) {
		glog.Info(logTag + "The User Flash Data File doesn't exist, it's being created now")
		def := DefaultRecord()
		content, _ := def.MarshalBinary()
		if err = s.writeFile(content); err != nil {
			return StateAbsent, err
		}
		data, err = s.readFile()
	}
	if err != nil {
		return StateAbsent, err
	}

	if !HasMarkers(data) {
		glog.Warning(logTag + "Markers for User Flash Data not found")
		return StateCorrupt, nil
	}
	glog.V(1).Info(logTag + "Data markers for User Flash Data found")
	if err = s.record.UnmarshalBinary(data); err != nil {
		glog.Warningf(logTag+"The User Flash Data file needs review, it was not loaded correctly: %v", err)
		return StateCorrupt, nil
	}
	glog.Info(logTag + "The User Flash Data file is OK, the data was loaded correctly")
	return StateValid, nil
}

// Save writes the in-memory record only if it differs from the
// durable copy. The record is dumped whatever the outcome.
func (s *Store) Save() error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	defer s.logRecord()

	durable, err := s.readFile()
	if err != nil {
		glog.Errorf(logTag+"File doesn't exist, save skipped: %v", err)
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	content, _ := s.record.MarshalBinary()
	if bytes.Equal(durable, content) {
		glog.V(1).Info(logTag + "Flash content unchanged, write skipped")
		return nil
	}
	glog.Info(logTag + "Flash content changed, writing new data")
	if err = s.FS.Remove(s.Name); err != nil {
		return err
	}
	return s.writeFile(content)
}

// SetMessage replaces the text of a 1-based slot in memory only.
// Call Save to persist.
func (s *Store) SetMessage(slot int, text string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	sl, err := NewSlot(text)
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.record.Messages[slot-1] = sl
	s.lock.Unlock()
	return nil
}

// Message returns the in-memory content of a 1-based slot.
func (s *Store) Message(slot int) (Slot, error) {
	if err := checkSlot(slot); err != nil {
		return Slot{}, err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.record.Messages[slot-1], nil
}

// Record returns a copy of the in-memory record.
func (s *Store) Record() Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.record
}

// Dump prints markers and all slots with their file offsets.
func (s *Store) Dump(w io.Writer) {
	s.lock.RLock()
	rec := s.record
	s.lock.RUnlock()
	for _, line := range dumpLines(&rec) {
		fmt.Fprintln(w, line)
	}
}

func (s *Store) logRecord() {
	lines := dumpLines(&s.record)
	if s.DumpTo != nil {
		for _, line := range lines {
			fmt.Fprintln(s.DumpTo, line)
		}
	}
	if !glog.V(1) {
		return
	}
	glog.Info(logTag + "Saved User Flash Data:")
	for _, line := range lines {
		glog.Info(logTag + line)
	}
}

func dumpLines(rec *Record) []string {
	lines := []string{fmt.Sprintf("000 Marks: %02X %02X", rec.MarkA, rec.MarkB)}
	for n := range rec.Messages {
		lines = append(lines, fmt.Sprintf("%03d Message %d: %s", slotOffset(n+1), n+1, rec.Messages[n].String()))
	}
	return lines
}

func checkSlot(slot int) error {
	if slot < 1 || slot > Slots {
		return &ParamError{Name: "slot", Reason: fmt.Sprintf("%d out of range [1, %d]", slot, Slots)}
	}
	return nil
}

func (s *Store) readFile() ([]byte, error) {
	r, err := s.FS.Open(s.Name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func (s *Store) writeFile(content []byte) error {
	f, err := s.FS.Create(s.Name)
	if err != nil {
		return err
	}
	var errs fx.AggregatedError
	_, err = f.Write(content)
	errs.Add(err)
	if err == nil {
		errs.Add(f.Sync())
	}
	errs.Add(f.Close())
	return errs.Aggregate()
}
