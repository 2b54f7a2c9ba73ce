package main

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
)

type gpioHeartbeat struct {
	g   gpio
	pin int
	on  bool
}

func newGPIOHeartbeat(g gpio, pin int) (*gpioHeartbeat, error) {
	err := g.GPIOSetOutput(pin, rpi.PullNone)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't set heartbeat pin %d to output", pin)
	}
	err = g.GPIOSetPin(pin, false)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't clear heartbeat pin %d", pin)
	}
	return &gpioHeartbeat{g: g, pin: pin}, nil
}

func (h *gpioHeartbeat) Toggle() error {
	h.on = !h.on
	return h.g.GPIOSetPin(h.pin, h.on)
}

type logHeartbeat struct {
	on bool
}

func (h *logHeartbeat) Toggle() error {
	h.on = !h.on
	glog.V(2).Infof("Heartbeat %v", h.on)
	return nil
}
