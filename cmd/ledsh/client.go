package main

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	replyTimeout = time.Second
	replyQuiet   = 50 * time.Millisecond
	readIdle     = 10 * time.Millisecond
)

// client talks to the strip's command console: one line out, the echo and
// whatever reply lines follow back.
type client struct {
	w       io.Writer
	lines   chan string
	errs    chan error
	timeout time.Duration
	quiet   time.Duration
}

func newClient(rw io.ReadWriter) *client {
	c := &client{
		w:       rw,
		lines:   make(chan string, 32),
		errs:    make(chan error, 1),
		timeout: replyTimeout,
		quiet:   replyQuiet,
	}
	go c.read(rw)
	return c
}

func (c *client) read(r io.Reader) {
	br := bufio.NewReader(r)
	var partial string
	for {
		s, err := br.ReadString('\n')
		partial += s
		if err == nil {
			c.lines <- strings.TrimRight(partial, "\r\n")
			partial = ""
			continue
		}
		if err == io.EOF {
			// tarm/serial reports a read timeout as EOF.
			time.Sleep(readIdle)
			continue
		}
		c.errs <- errors.Wrap(err, "read failed")
		return
	}
}

func (c *client) drain() {
	for {
		select {
		case <-c.lines:
		default:
			return
		}
	}
}

// Do sends line and collects the reply. The device's echo of line is
// dropped. A reply starting with "ERR: " comes back as an error.
func (c *client) Do(line string) ([]string, error) {
	c.drain()
	_, err := io.WriteString(c.w, line+"\n")
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't send %q", line)
	}
	var reply []string
	echoed := false
	wait := c.timeout
	for {
		select {
		case l := <-c.lines:
			if !echoed && l == line {
				echoed = true
				continue
			}
			reply = append(reply, l)
			wait = c.quiet
		case err := <-c.errs:
			return reply, err
		case <-time.After(wait):
			if len(reply) == 0 {
				return nil, errors.Errorf("no reply to %q", line)
			}
			return reply, replyErr(reply)
		}
	}
}

func replyErr(reply []string) error {
	for _, l := range reply {
		if strings.HasPrefix(l, "ERR: ") {
			return errors.New(strings.TrimPrefix(l, "ERR: "))
		}
	}
	return nil
}
