package ble

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/lorabadge/pkg/framework"
)

// StreamReadWriter turns a byte stream, e.g. a serial BLE bridge, into
// packets of whatever each read returns.
type StreamReadWriter struct {
	io.ReadWriter
	buf []byte
}

// NewStream creates a StreamReadWriter.
func NewStream(s io.ReadWriter) *StreamReadWriter {
	return &StreamReadWriter{ReadWriter: s, buf: make([]byte, 256)}
}

// ReadPacket implements PacketReader.
func (p *StreamReadWriter) ReadPacket() ([]byte, error) {
	n, err := p.Read(p.buf)
	if n > 0 {
		return append([]byte(nil), p.buf[:n]...), nil
	}
	if err == nil {
		return nil, nil
	}
	return nil, err
}

// WritePacket implements PacketWriter.
func (p *StreamReadWriter) WritePacket(pkt []byte) error {
	_, err := p.Write(pkt)
	return err
}

// OpenSerial opens a serial BLE bridge.
func OpenSerial(name string, baud int) (serial.Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// ServeSerial serves the buffer from a serial port until ctx is done.
func ServeSerial(ctx context.Context, b *Buffer, port io.ReadWriteCloser) error {
	return fx.RunWithContextCloser(ctx, port, func() error {
		return b.Serve(NewStream(port))
	})
}

// WSReadWriter implements PacketReadWriter over a websocket.
type WSReadWriter websocket.Conn

// NewWS wraps websocket.Conn.
func NewWS(conn *websocket.Conn) *WSReadWriter {
	return (*WSReadWriter)(conn)
}

// ReadPacket implements PacketReader.
func (p *WSReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *WSReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// WSHandler serves websocket peers into the buffer.
func WSHandler(b *Buffer) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		if err := b.Serve(NewWS(conn)); err != nil {
			glog.Warningf("[BLE] websocket peer: %v", err)
		}
	})
}

// ServeWS listens on addr and serves websocket peers at /ble until ctx
// is done.
func ServeWS(ctx context.Context, b *Buffer, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/ble", WSHandler(b))
	server := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	glog.Infof("[BLE] websocket UART on %s/ble", ln.Addr())
	if err = server.Serve(ln); err == http.ErrServerClosed {
		return ctx.Err()
	}
	return err
}
