package sensor

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// LIS3DH registers.
const (
	regWhoAmI   = 0x0F
	regCtrl1    = 0x20
	regCtrl3    = 0x22
	regCtrl4    = 0x23
	regCtrl5    = 0x24
	regOutXL    = 0x28
	regInt1Cfg  = 0x30
	regInt1Src  = 0x31
	regInt1Ths  = 0x32
	regInt1Dur  = 0x33
	autoIncr    = 0x80
	whoAmIValue = 0x33

	// DefaultAddr is the address with SA0 pulled low.
	DefaultAddr = 0x18
)

// ErrNotFound indicates WHO_AM_I doesn't identify a LIS3DH.
var ErrNotFound = errors.New("LIS3DH not found")

// Conn is a register transaction, e.g. *i2c.Dev.
type Conn interface {
	Tx(w, r []byte) error
}

// LIS3DH is the accelerometer on I2C with INT1 raising on motion.
type LIS3DH struct {
	Dev Conn
	// Threshold in 16 mg steps at +-2g.
	Threshold byte
}

// NewLIS3DH creates a LIS3DH on an opened connection.
func NewLIS3DH(dev Conn) *LIS3DH {
	return &LIS3DH{Dev: dev, Threshold: 0x10}
}

// OpenLIS3DH opens the I2C bus and the interrupt pin. The pin is
// configured for rising edges and may be passed to Watch.
func OpenLIS3DH(busName string, addr uint16, pinName string) (*LIS3DH, i2c.BusCloser, gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, nil, err
	}
	if addr == 0 {
		addr = DefaultAddr
	}
	var pin gpio.PinIO
	if pinName != "" {
		if pin = gpioreg.ByName(pinName); pin == nil {
			bus.Close()
			return nil, nil, nil, fmt.Errorf("unknown pin %q", pinName)
		}
		if err = pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			bus.Close()
			return nil, nil, nil, err
		}
	}
	return NewLIS3DH(&i2c.Dev{Bus: bus, Addr: addr}), bus, pin, nil
}

// Init implements Accelerometer: 10 Hz, all axes, high resolution
// +-2g, high-g event on any axis latched to INT1.
func (s *LIS3DH) Init() error {
	id, err := s.readReg(regWhoAmI)
	if err != nil {
		return err
	}
	if id != whoAmIValue {
		return ErrNotFound
	}
	for _, w := range [][2]byte{
		{regCtrl1, 0x27},
		{regCtrl4, 0x08},
		{regCtrl5, 0x08},
		{regInt1Ths, s.Threshold},
		{regInt1Dur, 0x00},
		{regInt1Cfg, 0x2A},
		{regCtrl3, 0x40},
	} {
		if err = s.Dev.Tx(w[:], nil); err != nil {
			return err
		}
	}
	_, err = s.readReg(regInt1Src)
	return err
}

// ClearInterrupt implements Accelerometer. Reading INT1_SRC releases
// the latch.
func (s *LIS3DH) ClearInterrupt() error {
	_, err := s.readReg(regInt1Src)
	return err
}

// Read implements Accelerometer.
func (s *LIS3DH) Read() (Vector, error) {
	var raw [6]byte
	if err := s.Dev.Tx([]byte{regOutXL | autoIncr}, raw[:]); err != nil {
		return Vector{}, err
	}
	// 12-bit left aligned, 1 mg/digit in high resolution at +-2g.
	axis := func(lo, hi byte) float64 {
		return float64(int16(uint16(hi)<<8|uint16(lo))>>4) / 1000
	}
	return Vector{
		X: axis(raw[0], raw[1]),
		Y: axis(raw[2], raw[3]),
		Z: axis(raw[4], raw[5]),
	}, nil
}

func (s *LIS3DH) readReg(reg byte) (byte, error) {
	var v [1]byte
	err := s.Dev.Tx([]byte{reg}, v[:])
	return v[0], err
}
