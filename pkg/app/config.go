package app

import (
	"flag"
	"io/ioutil"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/lorabadge/pkg/radio/rylr896"
)

// Kinds of collaborators.
const (
	KindNone      = "none"
	KindNull      = "null"
	KindSim       = "sim"
	KindMQTT      = "mqtt"
	KindRYLR896   = "rylr896"
	KindSerial    = "serial"
	KindWS        = "ws"
	KindPNG       = "png"
	KindWaveshare = "waveshare"
	KindLIS3DH    = "lis3dh"
)

// Config defines the configurations of the badge.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	DeviceName string `yaml:"device_name"`
	DeviceID   string `yaml:"device_id"`

	StatusInterval time.Duration `yaml:"status_interval"`
	FailLimit      int           `yaml:"fail_limit"`

	BLE              bool          `yaml:"ble"`
	BLETransport     string        `yaml:"ble_transport"`
	BLESerial        string        `yaml:"ble_serial"`
	BLEBaudRate      int           `yaml:"ble_baud"`
	BLEListen        string        `yaml:"ble_listen"`
	AdvertiseTimeout time.Duration `yaml:"advertise_timeout"`
	InterByteDelay   time.Duration `yaml:"inter_byte_delay"`

	Radio   string         `yaml:"radio"`
	MQTTURL string         `yaml:"mqtt_url"`
	RYLR896 rylr896.Config `yaml:"rylr896"`

	Display  string `yaml:"display"`
	PNGPath  string `yaml:"png_path"`
	SPIPort  string `yaml:"spi_port"`
	Accel    string `yaml:"accel"`
	I2CBus   string `yaml:"i2c_bus"`
	AccelPin string `yaml:"accel_pin"`
}

var defaultConfig = Config{
	DataDir:          "/var/lib/badge",
	DeviceName:       "WB-Love",
	StatusInterval:   time.Minute,
	FailLimit:        DefaultFailLimit,
	BLE:              true,
	BLETransport:     KindNone,
	BLEBaudRate:      9600,
	BLEListen:        ":8866",
	AdvertiseTimeout: DefaultAdvertiseTimeout,
	InterByteDelay:   DefaultInterByteDelay,
	Radio:            KindNull,
	MQTTURL:          "mqtt://localhost:1883/lora/",
	RYLR896:          rylr896.Config{Port: "/dev/ttyS0", BaudRate: rylr896.DefaultBaudRate},
	Display:          KindNone,
	PNGPath:          "epd.png",
	Accel:            KindNone,
	AccelPin:         "GPIO17",
}

func init() {
	if val := os.Getenv("BADGE_DATA_DIR"); val != "" {
		defaultConfig.DataDir = val
	}
	if val := os.Getenv("BADGE_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	defaultConfig.DeviceID = DeviceID()
}

// DeviceID returns the machine id, or a random one when unavailable.
func DeviceID() string {
	if id, err := machineid.ID(); err == nil && id != "" {
		return id
	}
	return uuid.New().String()
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
}

// BindFlags binds the fields to flags in fs.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory holding the user flash data")
	fs.StringVar(&c.DeviceName, "name", c.DeviceName, "Advertised BLE name")
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID")
	fs.DurationVar(&c.StatusInterval, "status-interval", c.StatusInterval, "Status packet interval, 0 to disable")
	fs.IntVar(&c.FailLimit, "fail-limit", c.FailLimit, "Failed transmissions before restart")
	fs.BoolVar(&c.BLE, "ble", c.BLE, "Enable BLE")
	fs.StringVar(&c.BLETransport, "ble-transport", c.BLETransport, "BLE UART transport: none|serial|ws")
	fs.StringVar(&c.BLESerial, "ble-serial", c.BLESerial, "Serial port of the BLE bridge")
	fs.IntVar(&c.BLEBaudRate, "ble-baud", c.BLEBaudRate, "Baud rate of the BLE bridge")
	fs.StringVar(&c.BLEListen, "ble-listen", c.BLEListen, "Listen address of the websocket BLE UART")
	fs.DurationVar(&c.AdvertiseTimeout, "adv-timeout", c.AdvertiseTimeout, "BLE advertising timeout")
	fs.DurationVar(&c.InterByteDelay, "byte-delay", c.InterByteDelay, "Delay between BLE bytes fed to the AT interpreter")
	fs.StringVar(&c.Radio, "radio", c.Radio, "Radio: null|mqtt|rylr896")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL, e.g. mqtt://host:port/topic-prefix")
	fs.StringVar(&c.RYLR896.Port, "lora-port", c.RYLR896.Port, "Serial port of the RYLR896 module")
	fs.StringVar(&c.Display, "display", c.Display, "Display: none|png|waveshare")
	fs.StringVar(&c.PNGPath, "png", c.PNGPath, "Output file of the png display")
	fs.StringVar(&c.SPIPort, "spi", c.SPIPort, "SPI port of the e-paper HAT")
	fs.StringVar(&c.Accel, "accel", c.Accel, "Accelerometer: none|sim|lis3dh")
	fs.StringVar(&c.I2CBus, "i2c", c.I2CBus, "I2C bus of the accelerometer")
	fs.StringVar(&c.AccelPin, "accel-pin", c.AccelPin, "Interrupt pin of the accelerometer")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Overlay loads a YAML file over c. Flags explicitly set in fs, which
// must be bound to c, keep their values.
func (c *Config) Overlay(fs *flag.FlagSet, path string) error {
	if path == "" {
		return nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err = yaml.Unmarshal(data, c); err != nil {
		return err
	}
	for name, val := range explicit {
		if err = fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}
