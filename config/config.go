// Package config loads the icedash settings with viper: built-in defaults,
// an optional YAML file and ICEDASH_* environment variables (e.g.
// ICEDASH_SERIAL_DEVICE for serial.device).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/embeddedgo/esp8266/credstore"
	"github.com/embeddedgo/esp8266/provision"
)

// EnvPrefix is the prefix of the environment variables.
const EnvPrefix = "ICEDASH"

// Config contains all settings.
type Config struct {
	Serial struct {
		Device string
		Baud   int
	}
	UART struct {
		RxSize  int
		Timeout time.Duration
	}
	Provision provision.Config
	UDPPort   int
	FlashPath string
	LogFile   string
}

// Defaults installs the default values in v.
func Defaults(v *viper.Viper) {
	p := provision.DefaultConfig()
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("uart.rx_size", 512)
	v.SetDefault("uart.timeout", 500*time.Millisecond)
	v.SetDefault("ap.ssid", p.SSID)
	v.SetDefault("ap.channel", p.Channel)
	v.SetDefault("ap.window", p.Window)
	v.SetDefault("station.join_timeout", p.JoinTimeout)
	v.SetDefault("http.port", p.HTTPPort)
	v.SetDefault("http.idle", 10*time.Second)
	v.SetDefault("udp.port", 8080)
	v.SetDefault("retry.delay", p.RetryDelay)
	v.SetDefault("flash.path", "icedash.flash")
	v.SetDefault("log.file", "")
}

// New returns a viper instance with the defaults and the environment
// binding. If file is not empty it is read as the config file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

var ErrInvalid = errors.New("invalid configuration")

func invalid(key string, value any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalid, key, value)
}

// Load extracts and validates the settings.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	c.Serial.Device = v.GetString("serial.device")
	c.Serial.Baud = v.GetInt("serial.baud")
	c.UART.RxSize = v.GetInt("uart.rx_size")
	c.UART.Timeout = v.GetDuration("uart.timeout")
	c.Provision = provision.Config{
		SSID:        v.GetString("ap.ssid"),
		Channel:     v.GetInt("ap.channel"),
		Window:      v.GetDuration("ap.window"),
		JoinTimeout: v.GetDuration("station.join_timeout"),
		HTTPPort:    v.GetInt("http.port"),
		RetryDelay:  v.GetDuration("retry.delay"),
		Idle:        v.GetDuration("http.idle"),
	}
	c.UDPPort = v.GetInt("udp.port")
	c.FlashPath = v.GetString("flash.path")
	c.LogFile = v.GetString("log.file")

	switch {
	case c.Serial.Baud <= 0:
		return nil, invalid("serial.baud", c.Serial.Baud)
	case c.UART.RxSize < 2 || c.UART.RxSize&(c.UART.RxSize-1) != 0:
		return nil, invalid("uart.rx_size", c.UART.RxSize)
	case c.UART.Timeout <= 0:
		return nil, invalid("uart.timeout", c.UART.Timeout)
	case c.Provision.SSID == "" || len(c.Provision.SSID) >= credstore.FieldSize:
		return nil, invalid("ap.ssid", c.Provision.SSID)
	case c.Provision.Channel < 1 || c.Provision.Channel > 13:
		return nil, invalid("ap.channel", c.Provision.Channel)
	case c.Provision.Window < 0:
		return nil, invalid("ap.window", c.Provision.Window)
	case c.Provision.JoinTimeout <= 0:
		return nil, invalid("station.join_timeout", c.Provision.JoinTimeout)
	case !validPort(c.Provision.HTTPPort):
		return nil, invalid("http.port", c.Provision.HTTPPort)
	case !validPort(c.UDPPort):
		return nil, invalid("udp.port", c.UDPPort)
	case c.Provision.RetryDelay < 0:
		return nil, invalid("retry.delay", c.Provision.RetryDelay)
	case c.FlashPath == "":
		return nil, invalid("flash.path", c.FlashPath)
	}
	return &c, nil
}

func validPort(p int) bool {
	return p > 0 && p < 1<<16
}
