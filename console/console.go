// Package console implements the line-oriented command channel: bytes arrive
// from a serial port in arbitrary chunks, are echoed back, assembled into
// lines and dispatched as single-character commands.
package console

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/shlex"
	"github.com/pkg/errors"
)

const (
	// LineCap is the line buffer size including the terminator.
	LineCap = 25

	// Blink periods must lie strictly between 0 and MaxBlink ms.
	MaxBlink = 50000

	chunkSize  = 64
	chunkQueue = 16
	idlePoll   = time.Millisecond
)

const helpMsg = "Commands:\n" +
	"b [ms]\theartbeat blink rate, 1-49999\n" +
	"r\tprint a random byte\n" +
	"p [i]\tprint pixel i's phase and colour\n" +
	"?\tthis help\n"

// Device is what commands act on.
type Device interface {
	BlinkRate() uint32
	SetBlinkRate(ms uint32)
	RandomByte() uint8
	DescribePixel(i int) (string, error)
}

type Console struct {
	w         *bufio.Writer
	dev       Device
	chunks    chan []byte
	ready     chan struct{}
	line      []byte
	truncated bool
}

func New(w io.Writer, dev Device) *Console {
	return &Console{
		w:      bufio.NewWriter(w),
		dev:    dev,
		chunks: make(chan []byte, chunkQueue),
		ready:  make(chan struct{}, 1),
		line:   make([]byte, 0, LineCap-1),
	}
}

// Listen reads r until it fails, queueing what it reads for Poll. It is meant
// to run in its own goroutine and returns nil at EOF.
func (c *Console) Listen(r io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.chunks <- chunk
			select {
			case c.ready <- struct{}{}:
			default:
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "console read failed")
		}
		if n == 0 {
			// Non-blocking readers (UARTs under TinyGo) return nothing when idle.
			time.Sleep(idlePoll)
		}
	}
}

// Ready is signalled when Listen has queued input. Signals coalesce.
func (c *Console) Ready() <-chan struct{} {
	return c.ready
}

// Poll handles whatever input is queued without blocking, then flushes
// replies. It returns whether any input was handled.
func (c *Console) Poll() bool {
	handled := false
	for {
		select {
		case chunk := <-c.chunks:
			c.feed(chunk)
			handled = true
		default:
			err := c.w.Flush()
			if err != nil {
				glog.Warningf("Console flush failed: %v", err)
			}
			return handled
		}
	}
}

// feed echoes b and assembles lines, dispatching each one as its newline
// arrives. Bytes past LineCap-1 are dropped until the newline.
func (c *Console) feed(b []byte) {
	for _, ch := range b {
		c.w.WriteByte(ch)
		switch {
		case ch == '\n':
			c.dispatch(string(c.line))
			c.line = c.line[:0]
			c.truncated = false
		case len(c.line) < LineCap-1:
			c.line = append(c.line, ch)
		default:
			c.truncated = true
		}
	}
}

func (c *Console) dispatch(l string) {
	if c.truncated {
		glog.Warningf("Line truncated to %q", l)
	}
	l = strings.TrimSpace(l)
	if l == "" {
		return
	}
	glog.V(1).Infof("Got line '%s'", l)
	reply, err := c.run(l[0], l[1:])
	if err != nil {
		glog.Warningf("Command %q failed: %v", l, err)
		c.w.WriteString("ERR: " + err.Error() + "\n")
		return
	}
	c.w.WriteString(reply)
}

func (c *Console) run(cmd byte, args string) (string, error) {
	switch cmd {
	case 'b':
		ms, err := parseBlink(args)
		if err != nil {
			return "", err
		}
		old := c.dev.BlinkRate()
		c.dev.SetBlinkRate(ms)
		glog.Infof("Blink rate %dms -> %dms", old, ms)
		return "OK\n", nil
	case 'r':
		return strconv.Itoa(int(c.dev.RandomByte())) + "\n", nil
	case '?':
		return helpMsg, nil
	case 'p':
		i, err := firstInt(args)
		if err != nil {
			return "", errors.Wrap(err, "bad pixel index")
		}
		s, err := c.dev.DescribePixel(i)
		if err != nil {
			return "", err
		}
		return s + "\n", nil
	}
	return "", errors.Errorf("unknown command '%c', ? for help", cmd)
}

func firstInt(args string) (int, error) {
	toks, err := shlex.Split(args)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, errors.New("missing argument")
	}
	return strconv.Atoi(toks[0])
}

// parseBlink parses a blink period, accepting only values in (0, MaxBlink).
func parseBlink(args string) (uint32, error) {
	ms, err := firstInt(args)
	if err != nil {
		return 0, errors.Wrap(err, "bad blink rate")
	}
	if ms <= 0 || ms >= MaxBlink {
		return 0, errors.Errorf("blink rate %d outside 1-%d", ms, MaxBlink-1)
	}
	return uint32(ms), nil
}

