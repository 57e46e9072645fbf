package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/flightlink/msp.go/pkg/msp"
	"github.com/flightlink/msp.go/pkg/transport/ws"
)

const unconnectedPrompt = "[none] > "

var timeout = time.Second

func init() {
	flag.DurationVar(&timeout, "timeout", timeout, "Response timeout per command.")
}

type session struct {
	driver *msp.Driver
	name   string
}

func (s *session) setDriver(sh *ishell.Shell, driver *msp.Driver, name string) {
	if s.driver != nil {
		s.driver.Close()
	}
	s.driver, s.name = driver, name
	sh.SetPrompt(fmt.Sprintf("%s > ", name))
}

func (s *session) mustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if s.driver == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

func (s *session) open(sh *ishell.Shell) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) == 0 {
			c.Err(fmt.Errorf("usage: open <device> [baud]"))
			return
		}
		baud := msp.DefaultBaud
		if len(c.Args) > 1 {
			val, err := strconv.Atoi(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("bad baud rate %q", c.Args[1]))
				return
			}
			baud = val
		}
		driver, err := msp.Open(msp.Config{Device: c.Args[0], Baud: baud})
		if err != nil {
			c.Err(err)
			return
		}
		s.setDriver(sh, driver, c.Args[0])
	}
}

func (s *session) openWS(sh *ishell.Shell) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) == 0 {
			c.Err(fmt.Errorf("usage: openws <url>"))
			return
		}
		conn, err := ws.Dial(c.Args[0], "")
		if err != nil {
			c.Err(err)
			return
		}
		s.setDriver(sh, msp.New(conn), c.Args[0])
	}
}

func (s *session) close(sh *ishell.Shell) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if s.driver != nil {
			s.driver.Close()
			s.driver, s.name = nil, ""
			sh.SetPrompt(unconnectedPrompt)
		}
	}
}

func parsePayload(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return hex.DecodeString(strings.Join(args, ""))
}

func printFrame(c *ishell.Context, f *msp.Frame) {
	if len(f.Payload) == 0 {
		c.Printf("cmd=%d empty response\n", f.Cmd)
		return
	}
	c.Printf("cmd=%d %d bytes: % X\n", f.Cmd, len(f.Payload), f.Payload)
}

func (s *session) send(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Err(fmt.Errorf("usage: send <cmd> [payload-hex]"))
		return
	}
	cmd, err := strconv.ParseUint(c.Args[0], 0, 8)
	if err != nil {
		c.Err(fmt.Errorf("bad command code %q", c.Args[0]))
		return
	}
	payload, err := parsePayload(c.Args[1:])
	if err != nil {
		c.Err(err)
		return
	}
	frame, err := s.driver.Send(byte(cmd), payload, timeout)
	if err != nil {
		c.Err(err)
		return
	}
	printFrame(c, frame)
}

func (s *session) sendV2(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Err(fmt.Errorf("usage: sendv2 <function> [payload-hex]"))
		return
	}
	fn, err := strconv.ParseUint(c.Args[0], 0, 16)
	if err != nil {
		c.Err(fmt.Errorf("bad function code %q", c.Args[0]))
		return
	}
	payload, err := parsePayload(c.Args[1:])
	if err != nil {
		c.Err(err)
		return
	}
	frame, err := s.driver.SendV2(0, uint16(fn), payload, timeout)
	if err != nil {
		c.Err(err)
		return
	}
	printFrame(c, frame)
}

func (s *session) stats(c *ishell.Context) {
	st := s.driver.Stats()
	c.Printf("frames in=%d out=%d checksum errors=%d unsolicited=%d\n",
		st.FramesIn, st.FramesOut, st.ChecksumErrors, s.driver.Unsolicited())
}

func main() {
	flag.Parse()

	s := &session{}
	sh := ishell.New()
	sh.Println("MSP shell")
	sh.SetPrompt(unconnectedPrompt)
	sh.AddCmd(&ishell.Cmd{Name: "open", Help: "open <device> [baud]", Func: s.open(sh)})
	sh.AddCmd(&ishell.Cmd{Name: "openws", Help: "openws <url>", Func: s.openWS(sh)})
	sh.AddCmd(&ishell.Cmd{Name: "close", Help: "close current link", Func: s.close(sh)})
	sh.AddCmd(&ishell.Cmd{Name: "send", Help: "send <cmd> [payload-hex]", Func: s.mustBeOpen(s.send)})
	sh.AddCmd(&ishell.Cmd{Name: "sendv2", Help: "sendv2 <function> [payload-hex]", Func: s.mustBeOpen(s.sendV2)})
	sh.AddCmd(&ishell.Cmd{Name: "stats", Help: "link counters", Func: s.mustBeOpen(s.stats)})
	defer s.close(sh)(nil)

	if args := flag.Args(); len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			sh.Println(err)
		}
		return
	}
	sh.Run()
}
