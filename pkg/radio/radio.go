// Package radio defines the LPWAN transport used by the badge and the
// bookkeeping shared by its implementations.
package radio

import (
	"fmt"
	"sync"

	"github.com/robotalks/lorabadge/pkg/events"
)

// TxResult is the immediate outcome of a transmission request.
type TxResult int

// Transmission results
const (
	// Enqueued means the transmit path was free and accepted the packet.
	Enqueued TxResult = iota
	// Busy means a transmit cycle is in progress.
	Busy
	// TooLarge means the packet exceeds the current payload limit.
	TooLarge
)

func (r TxResult) String() string {
	switch r {
	case Enqueued:
		return "Enqueued"
	case Busy:
		return "Busy"
	case TooLarge:
		return "TooLarge"
	}
	return fmt.Sprintf("TxResult(%d)", int(r))
}

// DefaultMaxPayload is the smallest application payload among the
// regional data rates.
const DefaultMaxPayload = 51

// Radio is the transport.
// Join and Send return immediately, completion is signaled by raising
// LoRaJoinFin and LoRaTxFin; the results are then available through
// JoinResult and TxResult.
type Radio interface {
	Join() error
	Send(data []byte) TxResult
	Joined() bool
	JoinResult() bool
	TxResult() bool
	Received() []byte
}

// Status records asynchronous results and raises the matching events.
// Implementations embed it and call the *Finished methods from their
// callbacks.
type Status struct {
	Raiser events.Raiser

	lock     sync.Mutex
	joined   bool
	joinOK   bool
	txOK     bool
	received []byte
}

// NewStatus creates a Status.
func NewStatus(raiser events.Raiser) *Status {
	return &Status{Raiser: raiser}
}

// JoinFinished records the join result and raises LoRaJoinFin.
func (s *Status) JoinFinished(ok bool) {
	s.lock.Lock()
	s.joinOK = ok
	s.joined = ok
	s.lock.Unlock()
	s.raise(events.LoRaJoinFin)
}

// TxFinished records the transmit result and raises LoRaTxFin.
func (s *Status) TxFinished(ok bool) {
	s.lock.Lock()
	s.txOK = ok
	s.lock.Unlock()
	s.raise(events.LoRaTxFin)
}

// ReceivedData records a downlink frame and raises LoRaData.
func (s *Status) ReceivedData(data []byte) {
	s.lock.Lock()
	s.received = append([]byte(nil), data...)
	s.lock.Unlock()
	s.raise(events.LoRaData)
}

// Lost marks the network as no longer joined.
func (s *Status) Lost() {
	s.lock.Lock()
	s.joined = false
	s.lock.Unlock()
}

// Joined implements Radio.
func (s *Status) Joined() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.joined
}

// JoinResult implements Radio.
func (s *Status) JoinResult() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.joinOK
}

// TxResult implements Radio.
func (s *Status) TxResult() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.txOK
}

// Received implements Radio.
func (s *Status) Received() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte(nil), s.received...)
}

func (s *Status) raise(ev events.Event) {
	if s.Raiser != nil {
		s.Raiser.Raise(ev)
	}
}
