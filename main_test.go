package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
)

type fakeGPIO struct {
	outputs map[int]bool
	inputs  map[int]rpi.PullMode
	levels  map[int]bool
	reads   int
	// readyAfter is how many reads of an input return low before it goes high.
	readyAfter int
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		outputs: map[int]bool{},
		inputs:  map[int]rpi.PullMode{},
		levels:  map[int]bool{},
	}
}

func (f *fakeGPIO) GPIOSetOutput(pin int, pm rpi.PullMode) error {
	f.outputs[pin] = true
	return nil
}

func (f *fakeGPIO) GPIOSetInput(pin int, pm rpi.PullMode) error {
	f.inputs[pin] = pm
	return nil
}

func (f *fakeGPIO) GPIOSetPin(pin int, high bool) error {
	f.levels[pin] = high
	return nil
}

func (f *fakeGPIO) GPIOGetPin(pin int) (bool, error) {
	f.reads++
	return f.reads > f.readyAfter, nil
}

func TestPowerWithoutStatus(t *testing.T) {
	g := newFakeGPIO()
	p, err := newLEDPower(g, 23, -1, time.Second)
	require.NoError(t, err)
	require.True(t, g.outputs[23])
	require.Empty(t, g.inputs)
	require.NoError(t, p.On())
	require.True(t, g.levels[23])
	require.Equal(t, 0, g.reads)
	require.NoError(t, p.Off())
	require.False(t, g.levels[23])
}

func TestPowerWaitsForStatus(t *testing.T) {
	g := newFakeGPIO()
	g.readyAfter = 2
	p, err := newLEDPower(g, 23, 24, time.Second)
	require.NoError(t, err)
	require.Equal(t, rpi.PullDown, g.inputs[24])
	require.NoError(t, p.On())
	require.Equal(t, 3, g.reads)
}

func TestPowerStatusTimeout(t *testing.T) {
	g := newFakeGPIO()
	g.readyAfter = 1000000
	p, err := newLEDPower(g, 23, 24, 10*time.Millisecond)
	require.NoError(t, err)
	require.Error(t, p.On())
}

func TestGPIOHeartbeat(t *testing.T) {
	g := newFakeGPIO()
	h, err := newGPIOHeartbeat(g, 27)
	require.NoError(t, err)
	require.True(t, g.outputs[27])
	require.False(t, g.levels[27])
	require.NoError(t, h.Toggle())
	require.True(t, g.levels[27])
	require.NoError(t, h.Toggle())
	require.False(t, g.levels[27])
}

func TestLogHeartbeat(t *testing.T) {
	h := &logHeartbeat{}
	require.NoError(t, h.Toggle())
	require.True(t, h.on)
}

func TestUDCSuspend(t *testing.T) {
	dir, err := ioutil.TempDir("", "udc")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	f := filepath.Join(dir, "state")

	u := udcSuspend(f)
	_, err = u.Suspended()
	require.Error(t, err)

	for _, test := range []struct {
		state string
		want  bool
	}{
		{"configured\n", false},
		{"suspended\n", true},
		{"not attached\n", false},
		{"suspended", true},
	} {
		require.NoError(t, ioutil.WriteFile(f, []byte(test.state), 0644))
		got, err := u.Suspended()
		require.NoError(t, err)
		if got != test.want {
			t.Errorf("State %q, got: %v, want %v", test.state, got, test.want)
		}
	}
}

func TestLogStrip(t *testing.T) {
	l := &logStrip{}
	require.Equal(t, 255, l.MaxPerChannel())
	require.NoError(t, l.Transmit(make([]byte, 150)))
}
