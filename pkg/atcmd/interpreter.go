// Package atcmd implements a line based AT command interpreter which is
// fed one byte at a time, e.g. from a BLE UART.
//
// Supported forms, per registered command +CMD:
//
//	AT          -> OK
//	AT?         -> lists all commands with their help
//	AT+CMD?     -> help of the command
//	AT+CMD=?    -> current value (Query)
//	AT+CMD=val  -> Exec(val)
//	AT+CMD      -> Run()
//
// Failures are reported as +CME ERROR:<code>. A form the command doesn't
// implement is not allowed.
package atcmd

import (
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// DefaultMaxLine is the line buffer capacity.
const DefaultMaxLine = 256

const (
	bs  = 0x08
	del = 0x7f
)

// Command defines one AT command.
type Command struct {
	// Name includes the leading '+', e.g. "+SETMSG".
	Name  string
	Help  string
	Query func() (string, error)
	Exec  func(param string) error
	Run   func() error
}

// Interpreter assembles lines and executes commands.
type Interpreter struct {
	Out     io.Writer
	MaxLine int

	lock     sync.Mutex
	commands []*Command
	line     []byte
	overflow bool
}

// New creates an Interpreter writing responses to out.
func New(out io.Writer, cmds ...*Command) *Interpreter {
	i := &Interpreter{Out: out, MaxLine: DefaultMaxLine}
	i.Register(cmds...)
	return i
}

// Register adds commands.
func (i *Interpreter) Register(cmds ...*Command) {
	i.lock.Lock()
	defer i.lock.Unlock()
	for _, cmd := range cmds {
		if cmd != nil {
			i.commands = append(i.commands, cmd)
		}
	}
}

// Commands returns registered commands.
func (i *Interpreter) Commands() []*Command {
	i.lock.Lock()
	defer i.lock.Unlock()
	return append([]*Command(nil), i.commands...)
}

// Feed consumes one byte. CR or LF completes a line.
func (i *Interpreter) Feed(b byte) {
	switch b {
	case '\r', '\n':
		i.lock.Lock()
		line, overflow := string(i.line), i.overflow
		i.line, i.overflow = i.line[:0], false
		i.lock.Unlock()
		if overflow {
			i.respond(ErrParamValue)
			return
		}
		if line = strings.TrimSpace(line); line != "" {
			i.respond(i.Execute(line))
		}
	case bs, del:
		i.lock.Lock()
		if n := len(i.line); n > 0 {
			i.line = i.line[:n-1]
		}
		i.lock.Unlock()
	default:
		i.lock.Lock()
		if len(i.line) < i.maxLine() {
			i.line = append(i.line, b)
		} else {
			i.overflow = true
		}
		i.lock.Unlock()
	}
}

// Write implements io.Writer by feeding every byte.
func (i *Interpreter) Write(p []byte) (int, error) {
	for _, b := range p {
		i.Feed(b)
	}
	return len(p), nil
}

// Execute runs one complete line and returns the result of the command.
// Informational output is written to Out; the final OK or error is not.
// A panicking command results in ErrSystem.
func (i *Interpreter) Execute(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("[AT] %s panicked: %v", line, r)
			err = ErrSystem
		}
	}()
	glog.V(2).Infof("[AT] %s", line)
	if len(line) < 2 || !strings.EqualFold(line[:2], "AT") {
		return ErrNoSupport
	}
	rest := line[2:]
	switch rest {
	case "":
		return nil
	case "?":
		for _, cmd := range i.Commands() {
			i.printf("AT%s: %s\r\n", cmd.Name, cmd.Help)
		}
		return nil
	}

	nameEnd := strings.IndexAny(rest, "=?")
	if nameEnd < 0 {
		nameEnd = len(rest)
	}
	cmd := i.find(rest[:nameEnd])
	if cmd == nil {
		return ErrNoSupport
	}
	switch suffix := rest[nameEnd:]; {
	case suffix == "":
		if cmd.Run == nil {
			return ErrNoAllow
		}
		return cmd.Run()
	case suffix == "?":
		i.printf("AT%s: %s\r\n", cmd.Name, cmd.Help)
		return nil
	case suffix == "=?":
		if cmd.Query == nil {
			return ErrNoAllow
		}
		val, err := cmd.Query()
		if err == nil {
			i.printf("AT%s=%s\r\n", cmd.Name, val)
		}
		return err
	case strings.HasPrefix(suffix, "="):
		if cmd.Exec == nil {
			return ErrNoAllow
		}
		return cmd.Exec(suffix[1:])
	default:
		return ErrParamNumber
	}
}

func (i *Interpreter) find(name string) *Command {
	for _, cmd := range i.Commands() {
		if strings.EqualFold(cmd.Name, name) {
			return cmd
		}
	}
	return nil
}

func (i *Interpreter) respond(err error) {
	if err != nil {
		glog.Warningf("[AT] command failed: %v", err)
		i.printf("%s\r\n", &Error{Code: CodeOf(err)})
		return
	}
	i.printf("OK\r\n")
}

func (i *Interpreter) printf(format string, args ...interface{}) {
	out := i.Out
	if out == nil {
		out = ioutil.Discard
	}
	fmt.Fprintf(out, format, args...)
}

func (i *Interpreter) maxLine() int {
	if i.MaxLine > 0 {
		return i.MaxLine
	}
	return DefaultMaxLine
}
