// Package env provides the common configuration of msgbox commands from
// command line flags and environment variables.
package env

import (
	"flag"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/link/serial"
	"github.com/robotalks/msgbox/pkg/link/websocket"
	"github.com/robotalks/msgbox/pkg/msgbox"
)

// AddressAuto derives the local address from the machine id.
const AddressAuto = "auto"

// Config provides common options to open a link and size its box.
type Config struct {
	// LinkURL locates the byte stream.
	// e.g. serial:///dev/ttyUSB0?baud=115200 or ws://host:port/
	LinkURL string
	// Address is the source address of sent messages, a number or "auto".
	Address string

	Capacity   int
	Slots      int
	MaxPayload int
	Checksum   bool
	Preamble   frame.Preamble

	// MQTTURL specifies the MQTT broker for bridging.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string
	// TunnelAddr is the listen address of the websocket tunnel.
	TunnelAddr string
}

var defaultConfig = Config{
	LinkURL:    "serial:///dev/ttyUSB0",
	Address:    AddressAuto,
	Capacity:   msgbox.DefaultConfig().Capacity,
	Slots:      msgbox.DefaultConfig().Slots,
	Preamble:   frame.DefaultPreamble,
	MQTTURL:    "mqtt://localhost:1883/msgbox/",
	TunnelAddr: ":8080",
}

func init() {
	if val := os.Getenv("MSGBOX_LINK"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("MSGBOX_ADDR"); val != "" {
		defaultConfig.Address = val
	}
	if val := os.Getenv("MSGBOX_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("MSGBOX_PREAMBLE"); val != "" {
		if p, err := frame.ParsePreamble(val); err == nil {
			defaultConfig.Preamble = p
		}
	}
}

// SetupFlags sets up command line flags on the default config.
func SetupFlags() {
	defaultConfig.SetupFlags(flag.CommandLine)
}

// SetupFlags registers flags for c on fs.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LinkURL, "link", c.LinkURL, "Link URL, serial:///dev/ttyX?baud=N or ws://host:port/")
	fs.StringVar(&c.Address, "addr", c.Address, "Local address, a number or auto")
	fs.IntVar(&c.Capacity, "capacity", c.Capacity, "Transmit buffer size in bytes")
	fs.IntVar(&c.Slots, "slots", c.Slots, "Received messages held until popped")
	fs.IntVar(&c.MaxPayload, "max-payload", c.MaxPayload, "Largest payload, 0 for the protocol maximum")
	fs.BoolVar(&c.Checksum, "checksum", c.Checksum, "Append and verify CRC-32 on frames")
	fs.Var((*preambleValue)(&c.Preamble), "preamble", "Frame preamble in hex, e.g. aabbccdd")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL")
	fs.StringVar(&c.TunnelAddr, "listen", c.TunnelAddr, "Websocket tunnel listen address")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// BoxConfig returns the MessageBox configuration.
func (c *Config) BoxConfig() msgbox.Config {
	return msgbox.Config{
		Capacity:   c.Capacity,
		Slots:      c.Slots,
		MaxPayload: c.MaxPayload,
		Checksum:   c.Checksum,
		Preamble:   c.Preamble,
	}
}

// NewBox creates a MessageBox using current config.
func (c *Config) NewBox() *msgbox.MessageBox {
	return msgbox.New(c.BoxConfig())
}

// OpenLink opens the byte stream at LinkURL.
func (c *Config) OpenLink() (io.ReadWriteCloser, error) {
	parsedURL, err := url.Parse(c.LinkURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "serial":
		conf, err := serial.ParseURL(parsedURL)
		if err != nil {
			return nil, err
		}
		return serial.Open(conf)
	case "ws", "wss":
		conn, err := websocket.Dial(c.LinkURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown link URL scheme: %q", parsedURL.Scheme)
	}
}

// MustOpenLink opens the link and fails on error.
func (c *Config) MustOpenLink() io.ReadWriteCloser {
	rw, err := c.OpenLink()
	if err != nil {
		log.Fatalln(err)
	}
	return rw
}

// LocalAddress resolves Address.
func (c *Config) LocalAddress() (byte, error) {
	if c.Address == "" || c.Address == AddressAuto {
		return HostAddress()
	}
	n, err := strconv.ParseUint(c.Address, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	return byte(n), nil
}

// HostAddress derives a stable address of this machine from its id.
func HostAddress() (byte, error) {
	id, err := machineid.ProtectedID("msgbox")
	if err != nil {
		return 0, err
	}
	return hashAddress(id), nil
}

func hashAddress(id string) byte {
	h := fnv.New32a()
	h.Write([]byte(id))
	sum := h.Sum32()
	return byte(sum ^ sum>>8 ^ sum>>16 ^ sum>>24)
}

type preambleValue frame.Preamble

func (v *preambleValue) String() string {
	return frame.Preamble(*v).String()
}

func (v *preambleValue) Set(s string) error {
	p, err := frame.ParsePreamble(s)
	if err != nil {
		return err
	}
	*v = preambleValue(p)
	return nil
}
