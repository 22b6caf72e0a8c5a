// Package serial opens UART devices as byte streams for a Link.
package serial

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	bug "go.bug.st/serial"
)

// Config describes a serial port.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	// Parity is "N", "E" or "O".
	Parity   string
	StopBits int
	// ReadTimeout makes Read return periodically with no data, 0 blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns 115200 8N1.
func DefaultConfig() Config {
	return Config{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
	}
}

// ParseURL parses serial:///dev/ttyUSB0?baud=115200&bits=8&parity=N&stop=1.
// Omitted settings keep DefaultConfig values.
func ParseURL(u *url.URL) (Config, error) {
	conf := DefaultConfig()
	if conf.Device = u.Path; u.Host != "" {
		// serial://COM3 on Windows
		conf.Device = u.Host + u.Path
	}
	if conf.Device == "" {
		return conf, fmt.Errorf("serial device missing in %q", u.String())
	}
	q := u.Query()
	for key, dst := range map[string]*int{"baud": &conf.BaudRate, "bits": &conf.DataBits, "stop": &conf.StopBits} {
		if val := q.Get(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return conf, fmt.Errorf("invalid %s %q: %w", key, val, err)
			}
			*dst = n
		}
	}
	if val := q.Get("parity"); val != "" {
		conf.Parity = strings.ToUpper(val)
	}
	if val := q.Get("timeout"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return conf, fmt.Errorf("invalid timeout %q: %w", val, err)
		}
		conf.ReadTimeout = d
	}
	_, err := conf.mode()
	return conf, err
}

func (c Config) mode() (*bug.Mode, error) {
	mode := &bug.Mode{BaudRate: c.BaudRate, DataBits: c.DataBits}
	switch c.Parity {
	case "", "N":
		mode.Parity = bug.NoParity
	case "E":
		mode.Parity = bug.EvenParity
	case "O":
		mode.Parity = bug.OddParity
	default:
		return nil, fmt.Errorf("invalid parity %q", c.Parity)
	}
	switch c.StopBits {
	case 0, 1:
		mode.StopBits = bug.OneStopBit
	case 2:
		mode.StopBits = bug.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d", c.StopBits)
	}
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d", c.DataBits)
	}
	return mode, nil
}

// Open opens the port.
func Open(c Config) (io.ReadWriteCloser, error) {
	mode, err := c.mode()
	if err != nil {
		return nil, err
	}
	port, err := bug.Open(c.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Device, err)
	}
	if c.ReadTimeout > 0 {
		if err = port.SetReadTimeout(c.ReadTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return port, nil
}

// List enumerates serial ports present on the host.
func List() ([]string, error) {
	return bug.GetPortsList()
}
