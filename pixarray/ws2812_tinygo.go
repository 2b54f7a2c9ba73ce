//go:build tinygo

package pixarray

import (
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// WS2812 bit-bangs frames straight from a GPIO pin on a microcontroller. The
// driver masks interrupts for the length of each frame.
type WS2812 struct {
	dev ws2812.Device
}

func NewWS2812(pin machine.Pin) *WS2812 {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &WS2812{ws2812.New(pin)}
}

func (w *WS2812) MaxPerChannel() int {
	return 255
}

func (w *WS2812) Transmit(b []byte) error {
	_, err := w.dev.Write(b)
	return err
}
