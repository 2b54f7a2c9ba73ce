package effects

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
)

// Effect is an animation driven by a fixed millisecond cadence. The caller
// invokes NextStep whenever Interval milliseconds have elapsed since the last
// call; each call renders and transmits exactly one frame.
type Effect interface {
	Start(pa *pixarray.PixArray) error
	NextStep(pa *pixarray.PixArray) error
	Interval() uint32
	Name() string
}

// Delayer blocks for short, sub-tick durations.
type Delayer interface {
	Delay(d time.Duration)
}

// Names lists the effects ByName knows, in the form accepted by -effect.
var Names = []string{"twinkle", "wheel"}

func ByName(name string, numPixels int, rnd *rand.Rand, d Delayer) (Effect, error) {
	switch name {
	case "twinkle":
		return NewTwinkle(numPixels, rnd, d), nil
	case "wheel":
		return NewWheel(), nil
	}
	return nil, errors.Errorf("unknown effect %q, want one of %v", name, Names)
}
