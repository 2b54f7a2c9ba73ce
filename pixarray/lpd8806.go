//go:build !tinygo

package pixarray

import (
	"github.com/pkg/errors"

	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
)

// This is satisfied by os.File, but this minimal interface makes testing easier
type dev interface {
	Fd() uintptr
	Write(b []byte) (n int, err error)
}

// LPD8806 sends frames over SPI. The chip takes 7 bits per channel with the
// high bit set, followed by one zero latch byte per 32 pixels.
type LPD8806 struct {
	dev       dev
	numPixels int
	sendBytes []byte
}

func NewLPD8806(dev dev, numPixels int, numColors int, spiSpeed uint32) (*LPD8806, error) {
	numReset := (numPixels + 31) / 32
	la := LPD8806{
		dev:       dev,
		numPixels: numPixels,
		sendBytes: make([]byte, numPixels*numColors+numReset),
	}

	if spiSpeed != 0 {
		err := rpi.SetSPISpeed(dev.Fd(), spiSpeed)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't set SPI speed to %d", spiSpeed)
		}
	}

	firstReset := make([]byte, numReset)
	_, err := dev.Write(firstReset)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't reset")
	}
	return &la, nil
}

func (la *LPD8806) MaxPerChannel() int {
	return 127
}

func (la *LPD8806) Transmit(b []byte) error {
	n := len(la.sendBytes) - (la.numPixels+31)/32
	if len(b) > n {
		return errors.Errorf("frame of %d bytes, strip takes %d", len(b), n)
	}
	for i, v := range b {
		la.sendBytes[i] = 0x80 | (v >> 1)
	}
	for i := len(b); i < n; i++ {
		la.sendBytes[i] = 0x80
	}
	_, err := la.dev.Write(la.sendBytes)
	return err
}
