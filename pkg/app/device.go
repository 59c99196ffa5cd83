package app

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/atcmd"
	"github.com/robotalks/lorabadge/pkg/ble"
	"github.com/robotalks/lorabadge/pkg/display"
	"github.com/robotalks/lorabadge/pkg/events"
	"github.com/robotalks/lorabadge/pkg/flash"
	fx "github.com/robotalks/lorabadge/pkg/framework"
	"github.com/robotalks/lorabadge/pkg/radio"
	"github.com/robotalks/lorabadge/pkg/radio/mqtt"
	"github.com/robotalks/lorabadge/pkg/radio/rylr896"
	"github.com/robotalks/lorabadge/pkg/sensor"
	"github.com/robotalks/lorabadge/pkg/userdata"
)

// Device is the assembled badge.
type Device struct {
	Config      *Config
	Events      *events.Mask
	Store       *userdata.Store
	Canvas      *display.Canvas
	Presenter   *display.Presenter
	Status      *radio.Status
	Radio       radio.Radio
	UART        *ble.Buffer
	Advertiser  *ble.Advertising
	Accel       sensor.Accelerometer
	Interpreter *atcmd.Interpreter
	Dispatcher  *Dispatcher
	Timer       *StatusTimer

	runnables []fx.Runnable
	closers   []io.Closer
}

// NewDevice creates the collaborators selected by the config.
func (c *Config) NewDevice() (*Device, error) {
	d := &Device{Config: c, Events: &events.Mask{}}
	if err := d.init(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	c := d.Config
	fs, err := flash.NewDirFS(c.DataDir)
	if err != nil {
		return err
	}
	d.Store = userdata.NewStore(fs)

	if err = d.initDisplay(); err != nil {
		return err
	}
	d.Presenter = display.NewPresenter(d.Store, d.panel())

	d.Status = radio.NewStatus(d.Events)
	if err = d.initRadio(); err != nil {
		return err
	}

	d.UART = ble.NewBuffer(d.Events)
	d.Advertiser = ble.NewAdvertising(c.DeviceName)
	d.Interpreter = atcmd.New(d.UART, SetMsgCommand(d.Store, d.Presenter))
	if err = d.initBLETransport(); err != nil {
		return err
	}

	if err = d.initAccel(); err != nil {
		return err
	}

	d.Dispatcher = NewDispatcher(d.Events, d.Radio)
	d.Dispatcher.UART = d.UART
	d.Dispatcher.Handler = d.Interpreter
	d.Dispatcher.BLEEnabled = c.BLE
	d.Dispatcher.Advertiser = d.Advertiser
	d.Dispatcher.Accel = d.Accel
	d.Dispatcher.Restarter = &ExitRestarter{}
	d.Dispatcher.AdvertiseTimeout = c.AdvertiseTimeout
	d.Dispatcher.InterByteDelay = c.InterByteDelay
	d.Dispatcher.FailLimit = c.FailLimit

	d.Timer = &StatusTimer{Interval: c.StatusInterval, Raiser: d.Events}
	d.runnables = append(d.runnables, fx.NamedRun("status-timer", d.Timer))
	return nil
}

func (d *Device) panel() display.Panel {
	if d.Canvas == nil {
		return nil
	}
	return d.Canvas
}

func (d *Device) initDisplay() error {
	switch kind := d.Config.Display; kind {
	case KindNone, "":
	case KindPNG:
		d.Canvas = display.NewCanvas(&display.PNGFile{Path: d.Config.PNGPath})
	case KindWaveshare:
		hat, err := display.OpenWaveshare(d.Config.SPIPort)
		if err != nil {
			return fmt.Errorf("open e-paper: %w", err)
		}
		d.closers = append(d.closers, hat)
		d.Canvas = display.NewCanvas(hat)
	default:
		return fmt.Errorf("unknown display %q", kind)
	}
	return nil
}

func (d *Device) initRadio() error {
	switch kind := d.Config.Radio; kind {
	case KindNull, "":
		d.Radio = radio.NewNull(d.Status)
	case KindMQTT:
		r, err := mqtt.NewFromURL(d.Config.MQTTURL, d.Config.DeviceID, d.Status)
		if err != nil {
			return fmt.Errorf("mqtt radio: %w", err)
		}
		d.closers = append(d.closers, r)
		d.Radio = r
	case KindRYLR896:
		r, err := rylr896.Open(d.Config.RYLR896, d.Status)
		if err != nil {
			return fmt.Errorf("open RYLR896: %w", err)
		}
		d.closers = append(d.closers, r)
		d.Radio = r
	default:
		return fmt.Errorf("unknown radio %q", kind)
	}
	return nil
}

func (d *Device) initBLETransport() error {
	switch kind := d.Config.BLETransport; kind {
	case KindNone, "":
	case KindSerial:
		port, err := ble.OpenSerial(d.Config.BLESerial, d.Config.BLEBaudRate)
		if err != nil {
			return fmt.Errorf("open BLE bridge: %w", err)
		}
		d.runnables = append(d.runnables, fx.NamedRun("ble-serial", fx.RunFunc(func(ctx context.Context) error {
			return ble.ServeSerial(ctx, d.UART, port)
		})))
	case KindWS:
		addr := d.Config.BLEListen
		d.runnables = append(d.runnables, fx.NamedRun("ble-ws", fx.RunFunc(func(ctx context.Context) error {
			return ble.ServeWS(ctx, d.UART, addr)
		})))
	default:
		return fmt.Errorf("unknown BLE transport %q", kind)
	}
	return nil
}

func (d *Device) initAccel() error {
	switch kind := d.Config.Accel; kind {
	case KindNone, "":
	case KindSim:
		d.Accel = sensor.NewSim(d.Events)
	case KindLIS3DH:
		acc, bus, pin, err := sensor.OpenLIS3DH(d.Config.I2CBus, 0, d.Config.AccelPin)
		if err != nil {
			return fmt.Errorf("open LIS3DH: %w", err)
		}
		d.closers = append(d.closers, bus)
		d.Accel = acc
		if pin != nil {
			d.runnables = append(d.runnables, fx.NamedRun("acc-int", fx.RunFunc(func(ctx context.Context) error {
				return sensor.Watch(ctx, pin, d.Events)
			})))
		}
	default:
		return fmt.Errorf("unknown accelerometer %q", kind)
	}
	return nil
}

// Start runs the power-on sequence: advertising, accelerometer,
// display, user data and network join. Only a failure to join is
// returned, the others are logged.
func (d *Device) Start() error {
	glog.Info("[APP] Application initialization")
	if d.Config.BLE {
		if err := d.Advertiser.RestartAdvertising(d.Config.AdvertiseTimeout); err != nil {
			glog.Errorf("[APP] start advertising: %v", err)
		}
	}
	if d.Accel != nil {
		if err := d.Accel.Init(); err != nil {
			glog.Errorf("[APP] ACC init failed: %v", err)
		}
	}
	if d.Canvas != nil {
		if err := d.Canvas.Splash(); err != nil {
			glog.Errorf("[EPD] init failed: %v", err)
		}
	}
	state, err := d.Store.Load()
	if err != nil {
		glog.Errorf("[APP] user data: %v", err)
	}
	glog.Infof("[APP] user data %s", state)
	return d.Radio.Join()
}

// Runnables returns the background producers.
func (d *Device) Runnables() []fx.Runnable {
	return d.runnables
}

// AddToLoop implements LoopAdder.
func (d *Device) AddToLoop(loop *fx.Loop) {
	loop.Add(d.Dispatcher)
	loop.AddRunnable(d.runnables...)
}

// Close releases hardware.
func (d *Device) Close() error {
	var errs fx.AggregatedError
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs.Add(d.closers[i].Close())
	}
	d.closers = nil
	return errs.Aggregate()
}
