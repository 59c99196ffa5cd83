// Package rylr896 drives a REYAX RYLR896 LoRa module through its AT
// command set over a serial port.
//
// Payloads are hex encoded on air so arbitrary bytes survive the
// module's text protocol.
package rylr896

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/lorabadge/pkg/radio"
)

// Module limits and defaults.
const (
	MaxFrame        = 240
	MaxPayload      = MaxFrame / 2
	DefaultBaudRate = 115200
	DefaultTimeout  = 10 * time.Second
	// commandGap is required by the module between consecutive commands.
	commandGap = 4 * time.Millisecond
)

// Errors
var (
	ErrTimeout = errors.New("command timeout")
	ErrClosed  = errors.New("module closed")
)

// ModuleError is an +ERR=<code> response.
type ModuleError struct {
	Code int
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module error %d", e.Code)
}

// Config is the module setup applied by Join.
type Config struct {
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baud"`
	Address   uint16 `yaml:"address"`
	NetworkID uint8  `yaml:"network_id"`
	Band      uint32 `yaml:"band"`
	// Peer receives uplinks, 0 broadcasts.
	Peer uint16 `yaml:"peer"`
}

// Frame is a received +RCV line.
type Frame struct {
	Address uint16
	Data    []byte
	RSSI    int
	SNR     int
}

type command struct {
	text string
	resp chan response
}

type response struct {
	line string
	err  error
}

// Radio implements radio.Radio.
type Radio struct {
	*radio.Status

	Config  Config
	Timeout time.Duration

	port     io.ReadWriteCloser
	cmds     chan command
	done     chan struct{}
	closeErr error
	once     sync.Once

	lock     sync.Mutex
	inflight bool
}

// Open opens the serial port and creates a Radio.
func Open(cfg Config, status *radio.Status) (*Radio, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return New(port, cfg, status), nil
}

// New creates a Radio over an opened port and starts its reader.
func New(port io.ReadWriteCloser, cfg Config, status *radio.Status) *Radio {
	r := &Radio{
		Status:  status,
		Config:  cfg,
		Timeout: DefaultTimeout,
		port:    port,
		cmds:    make(chan command),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Join implements radio.Radio. The module has no network join, so
// joining means probing and configuring it.
func (r *Radio) Join() error {
	go func() {
		err := r.configure()
		if err != nil {
			glog.Warningf("[RADIO] RYLR896 setup failed: %v", err)
		}
		r.JoinFinished(err == nil)
	}()
	return nil
}

// Send implements radio.Radio.
func (r *Radio) Send(data []byte) radio.TxResult {
	if len(data) > MaxPayload {
		return radio.TooLarge
	}
	r.lock.Lock()
	if r.inflight {
		r.lock.Unlock()
		return radio.Busy
	}
	r.inflight = true
	r.lock.Unlock()

	encoded := hex.EncodeToString(data)
	text := fmt.Sprintf("AT+SEND=%d,%d,%s", r.Config.Peer, len(encoded), encoded)
	go func() {
		_, err := r.Exec(text)
		if err != nil {
			glog.Warningf("[RADIO] send failed: %v", err)
		}
		r.lock.Lock()
		r.inflight = false
		r.lock.Unlock()
		r.TxFinished(err == nil)
	}()
	return radio.Enqueued
}

// Exec sends one command and waits for its response line.
func (r *Radio) Exec(text string) (string, error) {
	cmd := command{text: text, resp: make(chan response, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return "", ErrClosed
	}
	select {
	case resp := <-cmd.resp:
		return resp.line, resp.err
	case <-r.done:
		return "", ErrClosed
	}
}

// Close stops the reader and closes the port.
func (r *Radio) Close() error {
	r.once.Do(func() {
		close(r.done)
		r.closeErr = r.port.Close()
		r.Lost()
	})
	return r.closeErr
}

func (r *Radio) configure() error {
	cmds := []string{"AT"}
	if r.Config.Address != 0 {
		cmds = append(cmds, fmt.Sprintf("AT+ADDRESS=%d", r.Config.Address))
	}
	if r.Config.NetworkID != 0 {
		cmds = append(cmds, fmt.Sprintf("AT+NETWORKID=%d", r.Config.NetworkID))
	}
	if r.Config.Band != 0 {
		cmds = append(cmds, fmt.Sprintf("AT+BAND=%d", r.Config.Band))
	}
	for _, cmd := range cmds {
		if _, err := r.Exec(cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	}
	return nil
}

func (r *Radio) run() {
	lines := make(chan string, 8)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(r.port)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				select {
				case <-r.done:
				default:
					glog.Errorf("[RADIO] serial read: %v", err)
				}
				return
			}
			glog.V(4).Infof("[RADIO] RX %q", line)
			select {
			case lines <- strings.TrimRight(line, "\r\n"):
			case <-r.done:
				return
			}
		}
	}()

	var pending *command
	var timeout <-chan time.Time
	for {
		var cmds chan command
		if pending == nil {
			cmds = r.cmds
		}
		select {
		case <-r.done:
			return
		case cmd := <-cmds:
			glog.V(4).Infof("[RADIO] TX %q", cmd.text)
			if _, err := io.WriteString(r.port, cmd.text+"\r\n"); err != nil {
				cmd.resp <- response{err: err}
				continue
			}
			pending, timeout = &cmd, time.After(r.timeout())
		case line, ok := <-lines:
			if !ok {
				if pending != nil {
					pending.resp <- response{err: ErrClosed}
				}
				r.Close()
				return
			}
			if line == "" {
				continue
			}
			if payload, found := strings.CutPrefix(line, "+RCV="); found {
				r.received(payload)
				continue
			}
			if pending == nil {
				glog.Warningf("[RADIO] unsolicited %q", line)
				continue
			}
			pending.resp <- parseResponse(line)
			pending, timeout = nil, nil
			time.Sleep(commandGap)
		case <-timeout:
			pending.resp <- response{err: ErrTimeout}
			pending, timeout = nil, nil
		}
	}
}

func (r *Radio) received(payload string) {
	frame, ok := ParseFrame(payload)
	if !ok {
		glog.Warningf("[RADIO] malformed +RCV=%s", payload)
		return
	}
	glog.V(2).Infof("[RADIO] RCV from %d RSSI %d SNR %d", frame.Address, frame.RSSI, frame.SNR)
	r.ReceivedData(frame.Data)
}

func (r *Radio) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func parseResponse(line string) response {
	if codeStr, found := strings.CutPrefix(line, "+ERR="); found {
		if code, err := strconv.Atoi(codeStr); err == nil {
			return response{line: line, err: &ModuleError{Code: code}}
		}
	}
	return response{line: line}
}

// ParseFrame parses the part after +RCV=:
// <address>,<length>,<data>,<rssi>,<snr>. data may contain commas and
// is hex decoded when possible.
func ParseFrame(payload string) (Frame, bool) {
	var f Frame
	parts := strings.SplitN(payload, ",", 3)
	if len(parts) != 3 {
		return f, false
	}
	addr, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return f, false
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil || length < 0 || length > len(parts[2]) {
		return f, false
	}
	data, rest := parts[2][:length], parts[2][length:]
	tail := strings.Split(strings.TrimPrefix(rest, ","), ",")
	if !strings.HasPrefix(rest, ",") || len(tail) != 2 {
		return f, false
	}
	if f.RSSI, err = strconv.Atoi(tail[0]); err != nil {
		return f, false
	}
	if f.SNR, err = strconv.Atoi(tail[1]); err != nil {
		return f, false
	}
	f.Address = uint16(addr)
	if decoded, err := hex.DecodeString(data); err == nil {
		f.Data = decoded
	} else {
		f.Data = []byte(data)
	}
	return f, true
}
