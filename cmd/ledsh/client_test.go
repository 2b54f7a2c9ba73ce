package main

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	console "github.com/Jon-Bright/ledtwinkle/console"
)

type fakeDevice struct {
	blink uint32
}

func (d *fakeDevice) BlinkRate() uint32 {
	return d.blink
}

func (d *fakeDevice) SetBlinkRate(ms uint32) {
	d.blink = ms
}

func (d *fakeDevice) RandomByte() uint8 {
	return 42
}

func (d *fakeDevice) DescribePixel(i int) (string, error) {
	if i < 0 || i > 49 {
		return "", fmt.Errorf("pixel %d out of range", i)
	}
	return "wait 000000/102030", nil
}

type pipeRW struct {
	io.Reader
	io.Writer
}

// newTestClient connects a client to a real console over a pair of pipes.
func newTestClient(t *testing.T) (*client, *fakeDevice) {
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()
	dev := &fakeDevice{blink: 500}
	con := console.New(devW, dev)
	done := make(chan struct{})
	go con.Listen(devR)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-con.Ready():
				con.Poll()
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		hostW.Close()
		devW.Close()
	})
	c := newClient(pipeRW{hostR, hostW})
	c.quiet = 20 * time.Millisecond
	return c, dev
}

func TestBlink(t *testing.T) {
	c, dev := newTestClient(t)
	reply, err := c.Do("b 1000")
	require.NoError(t, err)
	require.Equal(t, []string{"OK"}, reply)
	require.Equal(t, uint32(1000), dev.blink)
}

func TestBlinkRejected(t *testing.T) {
	c, dev := newTestClient(t)
	_, err := c.Do("b 0")
	require.Error(t, err)
	require.Equal(t, uint32(500), dev.blink)
}

func TestRandom(t *testing.T) {
	c, _ := newTestClient(t)
	reply, err := c.Do("r")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, reply)
}

func TestPixel(t *testing.T) {
	c, _ := newTestClient(t)
	reply, err := c.Do("p 3")
	require.NoError(t, err)
	require.Equal(t, []string{"wait 000000/102030"}, reply)

	_, err = c.Do("p 50")
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestDeviceHelpIsMultiLine(t *testing.T) {
	c, _ := newTestClient(t)
	reply, err := c.Do("?")
	require.NoError(t, err)
	require.True(t, len(reply) > 1, "reply %v", reply)
	require.Equal(t, "Commands:", reply[0])
}

func TestNoReply(t *testing.T) {
	r, _ := io.Pipe()
	c := newClient(pipeRW{r, io.Discard})
	c.timeout = 20 * time.Millisecond
	_, err := c.Do("r")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no reply")
}
