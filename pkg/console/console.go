// Package console provides an interactive developer shell attached to a
// running badge. It raises events and injects BLE and LoRa traffic the
// way the hardware would.
package console

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/lorabadge/pkg/app"
	"github.com/robotalks/lorabadge/pkg/events"
	"github.com/robotalks/lorabadge/pkg/radio"
	"github.com/robotalks/lorabadge/pkg/sensor"
)

var (
	// ErrNoSimAccel is returned when the accelerometer is real hardware.
	ErrNoSimAccel = errors.New("accelerometer is not simulated")
	// ErrNoNullRadio is returned when the radio can't inject downlinks.
	ErrNoNullRadio = errors.New("radio is not the null radio")
)

// Console provides ishell backed interactive shell.
type Console struct {
	Device *app.Device
	Shell  *ishell.Shell
}

const (
	consoleKey = "$console"
	prompt     = "badge > "
)

var commands = []*ishell.Cmd{
	&TickCmd,
	&AccCmd,
	&BLECmd,
	&ShowCmd,
	&MsgsCmd,
	&DownlinkCmd,
	&StatusCmd,
}

// New creates a console for the device.
func New(d *app.Device) *Console {
	c := &Console{Device: d, Shell: ishell.New()}
	c.Shell.Set(consoleKey, c)
	c.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		c.Shell.AddCmd(cmd)
	}
	return c
}

// From gets Console from ishell context.
func From(c *ishell.Context) *Console {
	return c.Get(consoleKey).(*Console)
}

// Run runs the shell, or processes args as a single command.
func (c *Console) Run(args ...string) error {
	if len(args) > 0 {
		return c.Shell.Process(args...)
	}
	c.Shell.Run()
	return nil
}

// Tick raises a status event as the periodic timer does.
func (c *Console) Tick() {
	c.Device.Events.Raise(events.Status)
}

// Acc fires the simulated accelerometer interrupt. It returns false if
// the previous interrupt is still latched.
func (c *Console) Acc() (bool, error) {
	sim, ok := c.Device.Accel.(*sensor.Sim)
	if !ok {
		return false, ErrNoSimAccel
	}
	return sim.Trigger(), nil
}

// BLE pushes text as one BLE UART write.
func (c *Console) BLE(text string) {
	c.Device.UART.Push([]byte(text))
}

// Show selects and displays a slot, 5 shows the logo.
func (c *Console) Show(n int) error {
	return c.Device.Presenter.Show(n)
}

// Downlink injects a hex encoded frame as if received over LoRa.
func (c *Console) Downlink(hexStr string) error {
	null, ok := c.Device.Radio.(*radio.Null)
	if !ok {
		return ErrNoNullRadio
	}
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return err
	}
	null.Inject(data)
	return nil
}

// Messages returns the store dump.
func (c *Console) Messages() string {
	var buf bytes.Buffer
	c.Device.Store.Dump(&buf)
	return buf.String()
}

// Status summarizes the device.
func (c *Console) Status() string {
	d := c.Device
	var sb strings.Builder
	fmt.Fprintf(&sb, "name:     %s\n", d.Advertiser.Name)
	fmt.Fprintf(&sb, "joined:   %v\n", d.Radio.Joined())
	fmt.Fprintf(&sb, "failures: %d\n", d.Dispatcher.SendFailures())
	fmt.Fprintf(&sb, "selected: %d\n", d.Presenter.Selected())
	fmt.Fprintf(&sb, "pending:  %s\n", d.Events.Pending())
	return sb.String()
}

var (
	// TickCmd raises the status event.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "raise status event",
		Func: func(c *ishell.Context) {
			From(c).Tick()
		},
	}

	// AccCmd triggers the simulated accelerometer.
	AccCmd = ishell.Cmd{
		Name: "acc",
		Help: "trigger accelerometer interrupt",
		Func: func(c *ishell.Context) {
			fired, err := From(c).Acc()
			if err != nil {
				c.Err(err)
				return
			}
			if !fired {
				c.Println("interrupt still latched")
			}
		},
	}

	// BLECmd writes text into the BLE UART.
	BLECmd = ishell.Cmd{
		Name: "ble",
		Help: "TEXT",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			From(c).BLE(strings.Join(c.Args, " "))
		},
	}

	// ShowCmd switches the display.
	ShowCmd = ishell.Cmd{
		Name: "show",
		Help: "SLOT(1-4, 5 for logo)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("SLOT required"))
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid SLOT: %v", err))
				return
			}
			if err = From(c).Show(n); err != nil {
				c.Err(err)
			}
		},
	}

	// MsgsCmd dumps the stored messages.
	MsgsCmd = ishell.Cmd{
		Name:    "msgs",
		Aliases: []string{"dump"},
		Help:    "",
		Func: func(c *ishell.Context) {
			c.Print(From(c).Messages())
		},
	}

	// DownlinkCmd injects a LoRa frame.
	DownlinkCmd = ishell.Cmd{
		Name:    "downlink",
		Aliases: []string{"rx"},
		Help:    "HEX",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX required"))
				return
			}
			if err := From(c).Downlink(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// StatusCmd prints the device state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			c.Print(From(c).Status())
		},
	}
)
