package pixarray

import (
	"fmt"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

const (
	GRB = iota
	BRG
	BGR
	GBR
	RGB
	RBG
)

var StringOrders map[string]int = map[string]int{
	"GRB": GRB,
	"BRG": BRG,
	"BGR": BGR,
	"GBR": GBR,
	"RGB": RGB,
	"RBG": RBG,
}

// Byte offsets within one pixel for g, r, b and w, per colour order.
var offsets map[int][]int = map[int][]int{
	GRB: {0, 1, 2, 3},
	BRG: {2, 1, 0, 3},
	BGR: {1, 2, 0, 3},
	GBR: {0, 2, 1, 3},
	RGB: {1, 0, 2, 3},
	RBG: {2, 0, 1, 3},
}

type Pixel struct {
	R int
	G int
	B int
	W int
}

func (p *Pixel) String() string {
	c := colorful.Color{R: float64(p.R) / 255.0, G: float64(p.G) / 255.0, B: float64(p.B) / 255.0}
	s := c.Clamped().Hex()[1:]
	if p.W > 0 {
		s += fmt.Sprintf("%02x", clamp(p.W))
	}
	return s
}

// Transmitter sends a finished frame to the strip. Transmit blocks until the
// frame, including the trailing reset/latch gap, is on the wire.
type Transmitter interface {
	MaxPerChannel() int
	Transmit(b []byte) error
}

// PixArray holds the linear pixel values and the derived output buffer:
// one byte per channel, gamma corrected, in the strip's colour order.
type PixArray struct {
	numPixels int
	numColors int
	g         int
	r         int
	b         int
	w         int
	pixels    []Pixel
	out       []byte
	zero      []byte
	leds      Transmitter
	txLock    sync.Mutex
}

func NewPixArray(numPixels int, numColors int, order int, leds Transmitter) (*PixArray, error) {
	if numPixels <= 0 {
		return nil, errors.Errorf("invalid pixel count %d", numPixels)
	}
	if numColors != 3 && numColors != 4 {
		return nil, errors.Errorf("invalid colour count %d, want 3 or 4", numColors)
	}
	o, ok := offsets[order]
	if !ok {
		return nil, errors.Errorf("unknown colour order %d", order)
	}
	if leds == nil {
		return nil, errors.New("no transmitter")
	}
	return &PixArray{
		numPixels: numPixels,
		numColors: numColors,
		g:         o[0],
		r:         o[1],
		b:         o[2],
		w:         o[3],
		pixels:    make([]Pixel, numPixels),
		out:       make([]byte, numPixels*numColors),
		zero:      make([]byte, numPixels*numColors),
		leds:      leds,
	}, nil
}

func (pa *PixArray) NumPixels() int {
	return pa.numPixels
}

func (pa *PixArray) NumColors() int {
	return pa.numColors
}

func (pa *PixArray) MaxPerChannel() int {
	return pa.leds.MaxPerChannel()
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// SetOne stores p for pixel i and renders it into the output buffer.
func (pa *PixArray) SetOne(i int, p Pixel) {
	pa.pixels[i] = p
	o := i * pa.numColors
	pa.out[o+pa.g] = Gamma(clamp(p.G))
	pa.out[o+pa.r] = Gamma(clamp(p.R))
	pa.out[o+pa.b] = Gamma(clamp(p.B))
	if pa.numColors == 4 {
		pa.out[o+pa.w] = Gamma(clamp(p.W))
	}
}

func (pa *PixArray) SetAll(p Pixel) {
	for i := 0; i < pa.numPixels; i++ {
		pa.SetOne(i, p)
	}
}

// GetPixel returns the linear (pre-gamma) value last set for pixel i.
func (pa *PixArray) GetPixel(i int) Pixel {
	return pa.pixels[i]
}

func (pa *PixArray) GetPixels() []Pixel {
	p := make([]Pixel, pa.numPixels)
	copy(p, pa.pixels)
	return p
}

// Bytes returns a copy of the output buffer as it would be transmitted.
func (pa *PixArray) Bytes() []byte {
	b := make([]byte, len(pa.out))
	copy(b, pa.out)
	return b
}

// Write transmits the output buffer. Calls are serialised: the transmitter
// is never entered twice at once.
func (pa *PixArray) Write() error {
	pa.txLock.Lock()
	defer pa.txLock.Unlock()
	return errors.Wrap(pa.leds.Transmit(pa.out), "transmit failed")
}

// WriteZero transmits an all-dark frame without touching the stored pixels.
func (pa *PixArray) WriteZero() error {
	pa.txLock.Lock()
	defer pa.txLock.Unlock()
	return errors.Wrap(pa.leds.Transmit(pa.zero), "transmit zero frame failed")
}
