package display

import (
	"image"
	"image/color"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"

	fx "github.com/robotalks/lorabadge/pkg/framework"
)

// Waveshare drives the 2.13" e-paper HAT over SPI.
type Waveshare struct {
	port spi.PortCloser
	dev  *waveshare2in13v4.Dev
}

// OpenWaveshare initializes the host, opens the SPI port (empty name
// for the first one) and clears the panel.
func OpenWaveshare(spiPort string) (*Waveshare, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, err
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	if err = dev.Init(); err == nil {
		err = dev.Clear(color.White)
	}
	if err != nil {
		port.Close()
		return nil, err
	}
	return &Waveshare{port: port, dev: dev}, nil
}

// Draw implements Drawer.
func (w *Waveshare) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	return w.dev.Draw(r, src, sp)
}

// Close puts the panel to sleep and releases the port.
func (w *Waveshare) Close() error {
	var errs fx.AggregatedError
	errs.Add(w.dev.Halt(), w.port.Close())
	return errs.Aggregate()
}
