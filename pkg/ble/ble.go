// Package ble provides the BLE UART service of the badge. Bytes from a
// peer are buffered until the dispatcher drains them, transports feed
// the buffer from a serial BLE bridge or a websocket.
package ble

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/events"
)

// MaxNameLen is the longest advertised device name.
const MaxNameLen = 10

// UART is the BLE serial service.
type UART interface {
	// Available returns the number of buffered inbound bytes.
	Available() int
	// ReadByte returns io.EOF when nothing is buffered.
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

// Advertiser controls BLE advertising.
type Advertiser interface {
	RestartAdvertising(timeout time.Duration) error
}

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Buffer is the inbound FIFO of the UART. Push raises BLEData.
type Buffer struct {
	Raiser events.Raiser

	lock sync.Mutex
	data []byte
	peer PacketWriter
}

// NewBuffer creates a Buffer.
func NewBuffer(raiser events.Raiser) *Buffer {
	return &Buffer{Raiser: raiser}
}

// Push appends inbound bytes.
func (b *Buffer) Push(p []byte) {
	if len(p) == 0 {
		return
	}
	b.lock.Lock()
	b.data = append(b.data, p...)
	b.lock.Unlock()
	if b.Raiser != nil {
		b.Raiser.Raise(events.BLEData)
	}
}

// Available implements UART.
func (b *Buffer) Available() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.data)
}

// ReadByte implements UART.
func (b *Buffer) ReadByte() (byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	c := b.data[0]
	b.data = b.data[1:]
	if len(b.data) == 0 {
		b.data = nil
	}
	return c, nil
}

// Write implements UART. Output is dropped when no peer is connected.
func (b *Buffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	peer := b.peer
	b.lock.Unlock()
	if peer == nil {
		return len(p), nil
	}
	if err := peer.WritePacket(append([]byte(nil), p...)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Connected returns true if a peer is attached.
func (b *Buffer) Connected() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.peer != nil
}

// Serve attaches rw as the peer and pushes every packet read from it
// until reading fails. Only one peer is served at a time, a new one
// replaces the previous.
func (b *Buffer) Serve(rw PacketReadWriter) error {
	b.lock.Lock()
	b.peer = rw
	b.lock.Unlock()
	glog.Info("[BLE] peer connected")
	defer func() {
		b.lock.Lock()
		if b.peer == rw {
			b.peer = nil
		}
		b.lock.Unlock()
		glog.Info("[BLE] peer disconnected")
	}()
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		b.Push(pkt)
	}
}

// Advertising is an Advertiser without a radio, it tracks the window.
type Advertising struct {
	Name string

	lock  sync.Mutex
	until time.Time
	count int
}

// NewAdvertising creates Advertising, truncating the name to MaxNameLen.
func NewAdvertising(name string) *Advertising {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	return &Advertising{Name: name}
}

// RestartAdvertising implements Advertiser.
func (a *Advertising) RestartAdvertising(timeout time.Duration) error {
	a.lock.Lock()
	a.until = time.Now().Add(timeout)
	a.count++
	a.lock.Unlock()
	glog.V(2).Infof("[BLE] advertising %q for %s", a.Name, timeout)
	return nil
}

// Active returns whether the advertising window is open.
func (a *Advertising) Active() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return time.Now().Before(a.until)
}

// Restarts returns how many times advertising was restarted.
func (a *Advertising) Restarts() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.count
}
