package console

import (
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lorabadge/pkg/app"
	"github.com/robotalks/lorabadge/pkg/display"
	"github.com/robotalks/lorabadge/pkg/events"
)

func newConsole(t *testing.T) (*Console, func()) {
	dir, err := ioutil.TempDir("", "console")
	require.NoError(t, err)
	conf := app.NewConfig()
	conf.DataDir = dir
	conf.Radio = app.KindNull
	conf.Accel = app.KindSim
	conf.InterByteDelay = 0
	d, err := conf.NewDevice()
	require.NoError(t, err)
	require.NoError(t, d.Start())
	d.Dispatcher.Dispatch()
	return New(d), func() {
		d.Close()
		os.RemoveAll(dir)
	}
}

func TestConsoleTickAndAcc(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	c.Tick()
	require.True(t, c.Device.Events.IsSet(events.Status))

	fired, err := c.Acc()
	require.NoError(t, err)
	require.True(t, fired)
	fired, err = c.Acc()
	require.NoError(t, err)
	require.False(t, fired)

	c.Device.Accel = nil
	_, err = c.Acc()
	require.Equal(t, ErrNoSimAccel, err)
}

func TestConsoleBLESetsMessage(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	c.BLE("AT+SETMSG=1:From console")
	c.Device.Dispatcher.Dispatch()
	require.Equal(t, 1, c.Device.Presenter.Selected())
	require.Contains(t, c.Messages(), "Message 1: From console")
}

func TestConsoleShow(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	require.NoError(t, c.Show(2))
	require.Equal(t, 2, c.Device.Presenter.Selected())
	require.NoError(t, c.Show(5))
	require.Equal(t, display.SelectNone, c.Device.Presenter.Selected())
	require.Equal(t, display.ErrSelector, c.Show(6))
}

func TestConsoleDownlink(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	require.NoError(t, c.Downlink("cafe"))
	require.Equal(t, []byte{0xca, 0xfe}, c.Device.Radio.Received())
	require.True(t, c.Device.Events.IsSet(events.LoRaData))
	require.Error(t, c.Downlink("zz"))
}

func TestConsoleStatus(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	out := c.Status()
	require.True(t, strings.HasPrefix(out, "name:     WB-Love\n"))
	require.Contains(t, out, "joined:   true")
	require.Contains(t, out, "failures: 0")
}

func TestConsoleProcess(t *testing.T) {
	c, done := newConsole(t)
	defer done()

	require.NoError(t, c.Run("tick"))
	require.True(t, c.Device.Events.IsSet(events.Status))
}
