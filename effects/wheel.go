package effects

import (
	"github.com/golang/glog"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
)

const (
	WheelInterval = 0x1F // ms per wheel position
	wheelSpread   = 5    // wheel positions between neighbouring pixels
)

// Wheel runs a rainbow along the strip, one wheel position per step.
type Wheel struct {
	pos    uint8
	pixels []pixarray.Pixel
}

func NewWheel() *Wheel {
	return &Wheel{}
}

// wheelColour maps a wheel position onto a fully saturated hue, with blue
// held to BlueCap.
func wheelColour(pos uint8) pixarray.Pixel {
	r, g, b := colorful.Hsv(float64(pos)*360.0/256.0, 1.0, 1.0).RGB255()
	if b > BlueCap {
		b = BlueCap
	}
	return pixarray.Pixel{R: int(r), G: int(g), B: int(b)}
}

func (w *Wheel) Start(pa *pixarray.PixArray) error {
	glog.Infof("Starting Wheel, %d pixels", pa.NumPixels())
	w.pos = 0
	w.pixels = make([]pixarray.Pixel, pa.NumPixels())
	return w.NextStep(pa)
}

func (w *Wheel) NextStep(pa *pixarray.PixArray) error {
	for i := range w.pixels {
		w.pixels[i] = wheelColour(w.pos + uint8(wheelSpread*i))
		pa.SetOne(i, w.pixels[i])
	}
	w.pos++
	return pa.Write()
}

func (w *Wheel) Interval() uint32 {
	return WheelInterval
}

func (w *Wheel) Name() string {
	return "WHEEL"
}

func (w *Wheel) DescribePixel(i int) (string, error) {
	if i < 0 || i >= len(w.pixels) {
		return "", errors.Errorf("pixel %d out of range 0-%d", i, len(w.pixels)-1)
	}
	return w.pixels[i].String(), nil
}
