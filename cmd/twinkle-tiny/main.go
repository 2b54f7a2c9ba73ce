//go:build tinygo && sam

// twinkle-tiny runs the twinkle on a SAMD microcontroller: strip on PA02,
// heartbeat on the board LED, commands over the USB serial port.
package main

import (
	"context"
	"math/rand"

	"machine"

	clock "github.com/Jon-Bright/ledtwinkle/clock"
	effects "github.com/Jon-Bright/ledtwinkle/effects"
	mainloop "github.com/Jon-Bright/ledtwinkle/mainloop"
	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
)

const (
	neoPin = machine.PA02
	seed   = 2
)

type pinHeartbeat machine.Pin

func (p pinHeartbeat) Toggle() error {
	pin := machine.Pin(p)
	pin.Set(!pin.Get())
	return nil
}

// serialReader drains whatever the serial port has buffered. It never blocks;
// an empty read returns 0, nil.
type serialReader struct {
	s machine.Serialer
}

func (r serialReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) && r.s.Buffered() > 0 {
		c, err := r.s.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	pa, err := pixarray.NewPixArray(effects.NumPixels, 3, pixarray.GRB, pixarray.NewWS2812(neoPin))
	if err != nil {
		println("pixarray:", err.Error())
		return
	}
	clk := clock.New(clock.DefaultPeriod)
	rnd := rand.New(rand.NewSource(seed))
	l, err := mainloop.New(mainloop.Config{
		Clock:      clk,
		Pixels:     pa,
		Effect:     effects.NewTwinkle(effects.NumPixels, rnd, clk),
		Rand:       rnd,
		ConsoleOut: machine.Serial,
		Heartbeat:  pinHeartbeat(led),
	})
	if err != nil {
		println("mainloop:", err.Error())
		return
	}

	ctx := context.Background()
	go l.Console().Listen(serialReader{machine.Serial})
	go clk.Run(ctx)
	err = l.Run(ctx)
	println("main loop ended:", err.Error())
}
