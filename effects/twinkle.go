package effects

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
)

const (
	NumPixels = 50

	MaxRampPeriod = 0x1F  // ticks between steps, 32 ticks/step at most
	MaxHold       = 0xFF  // ticks
	MaxWait       = 0xFFF // ticks

	// BlueCap limits the blue target. Red and green use the full range.
	BlueCap = 100

	// PixelTxMicros is the worst-case time to clock one pixel out to the strip.
	PixelTxMicros = 30

	// TickInterval is the animation cadence in ms for NumPixels pixels. It
	// must stay above PixelTxMicros*NumPixels so frames don't run into each
	// other on the wire; see TickIntervalFor.
	TickInterval = NumPixels*PixelTxMicros/1000 + 1

	// SettleDelay follows the first frame sent after start-up.
	SettleDelay = 200 * time.Microsecond
)

// TickIntervalFor returns the smallest whole number of milliseconds strictly
// greater than the transmission time of numPixels pixels.
func TickIntervalFor(numPixels int) uint32 {
	return uint32(numPixels*PixelTxMicros/1000 + 1)
}

// Phase is one stage of a pixel's cycle. The zero Phase is RampUp.
type Phase struct {
	id uint8
}

var (
	RampUp   = Phase{0}
	Hold     = Phase{1}
	RampDown = Phase{2}
	Wait     = Phase{3}
)

var phaseNames = [...]string{"up", "hold", "down", "wait"}

func (p Phase) String() string {
	return phaseNames[p.id]
}

type RGB struct {
	R, G, B uint8
}

func (c RGB) Pixel() pixarray.Pixel {
	return pixarray.Pixel{R: int(c.R), G: int(c.G), B: int(c.B)}
}

// PixelState is the animation state of one pixel.
type PixelState struct {
	Target      RGB
	Current     RGB
	RampPeriod  uint8  // 0..MaxRampPeriod
	RampCounter uint8  // ticks since the last step
	HoldTicks   uint8  // remaining, 0..MaxHold
	WaitTicks   uint16 // remaining, 0..MaxWait
	Phase       Phase
}

func (ps PixelState) String() string {
	c := ps.Current.Pixel()
	t := ps.Target.Pixel()
	return fmt.Sprintf("%s %s/%s", ps.Phase, c.String(), t.String())
}

// Twinkle fades each pixel up to a random colour, holds it, fades it back to
// black and waits, all with per-pixel random timings.
type Twinkle struct {
	pixels []PixelState
	rnd    *rand.Rand
	delay  Delayer
}

func NewTwinkle(numPixels int, rnd *rand.Rand, d Delayer) *Twinkle {
	return &Twinkle{
		pixels: make([]PixelState, numPixels),
		rnd:    rnd,
		delay:  d,
	}
}

// InitOne draws new targets and timings for a pixel. Current and Phase are
// left alone.
func (t *Twinkle) InitOne(ps *PixelState) {
	ps.Target.R = uint8(t.rnd.Intn(256))
	ps.Target.G = uint8(t.rnd.Intn(256))
	b := t.rnd.Intn(256)
	if b > BlueCap {
		b = BlueCap
	}
	ps.Target.B = uint8(b)
	ps.RampPeriod = uint8(t.rnd.Intn(MaxRampPeriod + 1))
	ps.HoldTicks = uint8(t.rnd.Intn(MaxHold + 1))
	ps.WaitTicks = uint16(t.rnd.Intn(MaxWait + 1))
}

// Start initialises every pixel dark and ramping up, sends the first frame
// and waits SettleDelay.
func (t *Twinkle) Start(pa *pixarray.PixArray) error {
	if pa.NumPixels() < len(t.pixels) {
		return errors.Errorf("twinkle needs %d pixels, array has %d", len(t.pixels), pa.NumPixels())
	}
	glog.Infof("Starting Twinkle, %d pixels, tick %dms", len(t.pixels), t.Interval())
	for i := range t.pixels {
		ps := &t.pixels[i]
		t.InitOne(ps)
		ps.Current = RGB{}
		ps.RampCounter = 0
		ps.Phase = RampUp
	}
	t.Render(pa)
	err := pa.Write()
	if err != nil {
		return errors.Wrap(err, "couldn't send first frame")
	}
	if t.delay != nil {
		t.delay.Delay(SettleDelay)
	}
	return nil
}

// pace counts a pixel through its ramp period. It returns true on the ticks
// where the colour should step.
func (ps *PixelState) pace() bool {
	if ps.RampCounter < ps.RampPeriod {
		ps.RampCounter++
		return false
	}
	ps.RampCounter = 0
	return true
}

func (ps *PixelState) enter(p Phase) {
	ps.Phase = p
	ps.RampCounter = 0
}

func stepUp(c *uint8, target uint8) {
	if *c < target {
		*c++
	}
}

func stepDown(c *uint8) {
	if *c > 0 {
		*c--
	}
}

// AdvanceOne moves pixel i on by one tick.
func (t *Twinkle) AdvanceOne(i int) {
	ps := &t.pixels[i]
	switch ps.Phase {
	case RampUp:
		if !ps.pace() {
			return
		}
		stepUp(&ps.Current.R, ps.Target.R)
		stepUp(&ps.Current.G, ps.Target.G)
		stepUp(&ps.Current.B, ps.Target.B)
		if ps.Current.R >= ps.Target.R && ps.Current.G >= ps.Target.G && ps.Current.B >= ps.Target.B {
			ps.enter(Hold)
		}
	case Hold:
		if ps.HoldTicks > 0 {
			ps.HoldTicks--
			return
		}
		ps.enter(RampDown)
	case RampDown:
		if !ps.pace() {
			return
		}
		stepDown(&ps.Current.R)
		stepDown(&ps.Current.G)
		stepDown(&ps.Current.B)
		if ps.Current == (RGB{}) {
			ps.enter(Wait)
		}
	case Wait:
		if ps.WaitTicks > 0 {
			ps.WaitTicks--
			return
		}
		t.InitOne(ps)
		ps.Current = RGB{}
		ps.enter(RampUp)
	}
}

// Advance moves every pixel on by one tick.
func (t *Twinkle) Advance() {
	for i := range t.pixels {
		t.AdvanceOne(i)
	}
}

// Render copies the current colours into pa, which applies gamma and
// colour order.
func (t *Twinkle) Render(pa *pixarray.PixArray) {
	for i := range t.pixels {
		pa.SetOne(i, t.pixels[i].Current.Pixel())
	}
}

// NextStep advances all pixels one tick, then renders and transmits once.
func (t *Twinkle) NextStep(pa *pixarray.PixArray) error {
	t.Advance()
	t.Render(pa)
	return pa.Write()
}

func (t *Twinkle) Interval() uint32 {
	return TickIntervalFor(len(t.pixels))
}

func (t *Twinkle) Name() string {
	return "TWINKLE"
}

func (t *Twinkle) NumPixels() int {
	return len(t.pixels)
}

// Pixel returns a copy of pixel i's state.
func (t *Twinkle) Pixel(i int) PixelState {
	return t.pixels[i]
}

func (t *Twinkle) Pixels() []PixelState {
	ret := make([]PixelState, len(t.pixels))
	copy(ret, t.pixels)
	return ret
}

// DescribePixel reports pixel i's phase, current colour and target.
func (t *Twinkle) DescribePixel(i int) (string, error) {
	if i < 0 || i >= len(t.pixels) {
		return "", errors.Errorf("pixel %d out of range 0-%d", i, len(t.pixels)-1)
	}
	return t.pixels[i].String(), nil
}
