// Package sh provides an interactive shell to exchange messages on a link.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/msgbox/pkg/env"
	"github.com/robotalks/msgbox/pkg/frame"
	"github.com/robotalks/msgbox/pkg/link"
	"github.com/robotalks/msgbox/pkg/link/serial"
	"github.com/robotalks/msgbox/pkg/msgbox"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is an open link pumped in background.
type Conn struct {
	URL     string
	Address byte
	Stream  io.ReadWriteCloser
	Link    *link.Link

	cancel context.CancelFunc
	done   chan error
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[closed] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&PortsCmd,
		&SendCmd,
		&SendTextCmd,
		&PopCmd,
		&AvailCmd,
		&SpaceCmd,
		&PreambleCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds adds more commands, used during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requiring an open link.
func MustBeOpen(fn func(c *ishell.Context, conn *Conn)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		conn := ShellFrom(c).Conn
		if conn == nil {
			c.Err(errors.New("link not open"))
			return
		}
		fn(c, conn)
	}
}

// StartConn pumps stream with a new box. Received messages stay in the box
// until popped.
func StartConn(stream io.ReadWriteCloser, box *msgbox.MessageBox, addr byte) *Conn {
	conn := &Conn{
		Address: addr,
		Stream:  stream,
		Link:    link.New(stream, box),
		done:    make(chan error, 1),
	}
	var ctx context.Context
	ctx, conn.cancel = context.WithCancel(context.Background())
	go func() {
		err := conn.Link.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("link %s stopped: %v", conn.URL, err)
		}
		conn.done <- err
	}()
	return conn
}

// Close stops the link and closes the stream.
func (c *Conn) Close() error {
	c.cancel()
	err := c.Stream.Close()
	<-c.done
	return err
}

// Open opens the link at url, or the configured one when empty.
func (s *Shell) Open(url string) error {
	conf := *s.Config
	if url != "" {
		conf.LinkURL = url
	}
	addr, err := conf.LocalAddress()
	if err != nil {
		return err
	}
	stream, err := conf.OpenLink()
	if err != nil {
		return err
	}
	s.Close()
	s.Conn = StartConn(stream, conf.NewBox(), addr)
	s.Conn.URL = conf.LinkURL
	s.Shell.SetPrompt(fmt.Sprintf("[%02x] %s > ", addr, conf.LinkURL))
	return nil
}

// Close closes the current link.
func (s *Shell) Close() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Config.LinkURL != "" {
		if err := s.Open(""); err != nil {
			if !s.Interactive {
				log.Fatalf("open %q failed: %v", s.Config.LinkURL, err)
			}
			s.Shell.Printf("open %q failed: %v\n", s.Config.LinkURL, err)
		}
		defer s.Close()
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Print prints v as JSON in JSON mode, otherwise its text form.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// ParseAddress parses an address in hex, like the one in messages printed.
func ParseAddress(s string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return byte(n), nil
}

// ParseHexPayload joins hex encoded args, e.g. "0102" "03" or "01" "02" "03".
func ParseHexPayload(args []string) ([]byte, error) {
	var payload []byte
	for _, arg := range args {
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", arg, err)
		}
		payload = append(payload, b...)
	}
	return payload, nil
}

// MessageJSON is the JSON form of a received message.
type MessageJSON struct {
	Destination byte   `json:"dst"`
	Source      byte   `json:"src"`
	Data        string `json:"data"`
}

// NewMessageJSON converts msg.
func NewMessageJSON(msg frame.Message) MessageJSON {
	return MessageJSON{
		Destination: msg.Destination,
		Source:      msg.Source,
		Data:        hex.EncodeToString(msg.Payload()),
	}
}

// SpaceJSON is the JSON form of the transmit buffer usage.
type SpaceJSON struct {
	Capacity int `json:"capacity"`
	Free     int `json:"free"`
	Used     int `json:"used"`
}

func send(c *ishell.Context, conn *Conn, dst string, payload []byte) {
	addr, err := ParseAddress(dst)
	if err != nil {
		c.Err(err)
		return
	}
	if err := conn.Link.Send(addr, conn.Address, payload); err != nil {
		c.Err(err)
		return
	}
	c.Println("OK")
}

var (
	// OpenCmd opens a link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			var url string
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := ShellFrom(c).Open(url); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "",
		Func: func(c *ishell.Context) {
			ports, err := serial.List()
			if err != nil {
				c.Err(err)
				return
			}
			if ports == nil {
				ports = []string{}
			}
			ShellFrom(c).Print(c, ports, strings.Join(ports, "\n"))
		},
	}

	// SendCmd sends a message with a hex payload.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "DST [HEX...]",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) < 1 {
				c.Err(errors.New("destination expected"))
				return
			}
			payload, err := ParseHexPayload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			send(c, conn, c.Args[0], payload)
		}),
	}

	// SendTextCmd sends a message with a text payload.
	SendTextCmd = ishell.Cmd{
		Name:    "send.text",
		Aliases: []string{"st"},
		Help:    "DST TEXT...",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) < 1 {
				c.Err(errors.New("destination expected"))
				return
			}
			send(c, conn, c.Args[0], []byte(strings.Join(c.Args[1:], " ")))
		}),
	}

	// PopCmd takes the oldest received message.
	PopCmd = ishell.Cmd{
		Name:    "pop",
		Aliases: []string{"p"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			msg, err := conn.Link.Pop()
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Print(c, NewMessageJSON(msg), msg.String())
		}),
	}

	// AvailCmd tells how many received messages are waiting.
	AvailCmd = ishell.Cmd{
		Name:    "avail",
		Aliases: []string{"a"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			n := conn.Link.Box.Pending()
			ShellFrom(c).Print(c, n, strconv.Itoa(n))
		}),
	}

	// SpaceCmd prints the transmit buffer usage.
	SpaceCmd = ishell.Cmd{
		Name: "space",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			box := conn.Link.Box
			sp := SpaceJSON{Capacity: box.Capacity(), Free: box.FreeSpace(), Used: box.UsedSpace()}
			ShellFrom(c).Print(c, sp, fmt.Sprintf("capacity %d free %d used %d", sp.Capacity, sp.Free, sp.Used))
		}),
	}

	// PreambleCmd shows or changes the preamble.
	PreambleCmd = ishell.Cmd{
		Name: "preamble",
		Help: "[HEX]",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			if len(c.Args) > 0 {
				p, err := frame.ParsePreamble(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				conn.Link.Box.SetPreamble(p)
			}
			p := conn.Link.Box.Preamble().String()
			ShellFrom(c).Print(c, p, p)
		}),
	}

	// StatsCmd prints the diagnostic counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, conn *Conn) {
			st := conn.Link.Box.Stats()
			ShellFrom(c).Print(c, st, fmt.Sprintf("frames %d framing-errors %d checksum-errors %d overruns %d",
				st.Frames, st.FramingErrors, st.ChecksumErrors, st.Overruns))
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
