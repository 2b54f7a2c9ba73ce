package main

import (
	"flag"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
)

var powerCtrlPin = flag.Int("powerCtrlPin", -1, "A GPIO pin which, when set high, turns on power for the LEDs. -1 means no such pin exists.")
var powerStatusPin = flag.Int("powerStatusPin", -1, "A GPIO pin which indicates healthy power to the LEDs. -1 means no such pin exists. Only relevant if powerCtrlPin is specified.")
var powerStatusWait = flag.Duration("powerStatusWait", 2*time.Second, "How long to wait for a healthy power signal. Only relevant if powerStatusPin is specified and relevant.")

const powerStatusPoll = 50 * time.Millisecond

// gpio is the part of *rpi.RPi that power control and the heartbeat use.
type gpio interface {
	GPIOSetOutput(pin int, pm rpi.PullMode) error
	GPIOSetInput(pin int, pm rpi.PullMode) error
	GPIOSetPin(pin int, high bool) error
	GPIOGetPin(pin int) (bool, error)
}

// ledPower switches the strip's supply through a GPIO pin, optionally
// waiting for a power-good input after switching on.
type ledPower struct {
	g          gpio
	ctrlPin    int
	statusPin  int
	statusWait time.Duration
}

func newLEDPower(g gpio, ctrlPin, statusPin int, statusWait time.Duration) (*ledPower, error) {
	err := g.GPIOSetOutput(ctrlPin, rpi.PullNone)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't set power control to output")
	}
	if statusPin >= 0 {
		err = g.GPIOSetInput(statusPin, rpi.PullDown)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't set power status to input")
		}
	}
	return &ledPower{g, ctrlPin, statusPin, statusWait}, nil
}

func (p *ledPower) On() error {
	glog.Infof("Power on")
	err := p.g.GPIOSetPin(p.ctrlPin, true)
	if err != nil {
		return errors.Wrap(err, "couldn't set power control high")
	}
	if p.statusPin < 0 {
		return nil
	}
	start := time.Now()
	for {
		val, err := p.g.GPIOGetPin(p.statusPin)
		if err != nil {
			return errors.Wrap(err, "couldn't query power status")
		}
		t := time.Now()
		if val {
			glog.Infof("Power stabilized after %v", t.Sub(start))
			return nil
		}
		if t.Sub(start) > p.statusWait {
			return errors.Errorf("timed out waiting for power to be healthy, started %v, now %v", start, t)
		}
		time.Sleep(powerStatusPoll) // No point overdoing it - we're not in _that_ much of a rush
	}
}

func (p *ledPower) Off() error {
	glog.Infof("Power off")
	err := p.g.GPIOSetPin(p.ctrlPin, false)
	if err != nil {
		return errors.Wrap(err, "couldn't set power control low")
	}
	// We could wait for power status to go low, but that might take a while and doesn't seem to provide any benefit
	return nil
}
