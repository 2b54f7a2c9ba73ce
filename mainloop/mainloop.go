// Package mainloop is the cooperative loop tying the clock, the command
// console and the running effect together. Everything the loop touches runs
// on the goroutine calling Run; only the clock and the console's reader feed
// it from outside.
package mainloop

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	clock "github.com/Jon-Bright/ledtwinkle/clock"
	console "github.com/Jon-Bright/ledtwinkle/console"
	effects "github.com/Jon-Bright/ledtwinkle/effects"
	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
)

const (
	DefaultBlinkRate = 500 // ms

	// SuspendCheckInterval is how often, in ms, the suspend source is asked.
	SuspendCheckInterval = 100

	DefaultResumePoll = 100 * time.Millisecond
)

// Indicator is the heartbeat output.
type Indicator interface {
	Toggle() error
}

// SuspendSource reports whether the host has suspended the device.
type SuspendSource interface {
	Suspended() (bool, error)
}

// Power switches the strip's supply.
type Power interface {
	On() error
	Off() error
}

type Config struct {
	Clock  *clock.Clock
	Pixels *pixarray.PixArray
	Effect effects.Effect
	Rand   *rand.Rand

	// Console replies go here. Nil means no console.
	ConsoleOut io.Writer

	// Optional.
	Heartbeat Indicator
	Suspend   SuspendSource
	Power     Power

	BlinkRate  uint32        // ms, DefaultBlinkRate if 0
	ResumePoll time.Duration // DefaultResumePoll if 0
}

type Loop struct {
	clk        *clock.Clock
	pa         *pixarray.PixArray
	effect     effects.Effect
	rnd        *rand.Rand
	con        *console.Console
	heartbeat  Indicator
	suspend    SuspendSource
	power      Power
	resumePoll time.Duration

	blinkRate   uint32
	neoTime     uint32
	blinkTime   uint32
	suspendTime uint32
	steps       int
}

func New(cfg Config) (*Loop, error) {
	if cfg.Clock == nil || cfg.Pixels == nil || cfg.Effect == nil || cfg.Rand == nil {
		return nil, errors.New("clock, pixels, effect and rand are all required")
	}
	l := &Loop{
		clk:        cfg.Clock,
		pa:         cfg.Pixels,
		effect:     cfg.Effect,
		rnd:        cfg.Rand,
		heartbeat:  cfg.Heartbeat,
		suspend:    cfg.Suspend,
		power:      cfg.Power,
		blinkRate:  cfg.BlinkRate,
		resumePoll: cfg.ResumePoll,
	}
	if l.blinkRate == 0 {
		l.blinkRate = DefaultBlinkRate
	}
	if l.blinkRate >= console.MaxBlink {
		return nil, errors.Errorf("blink rate %d must be below %d", l.blinkRate, console.MaxBlink)
	}
	if l.resumePoll <= 0 {
		l.resumePoll = DefaultResumePoll
	}
	if cfg.ConsoleOut != nil {
		l.con = console.New(cfg.ConsoleOut, l)
	}
	return l, nil
}

// Console returns the loop's console, nil if there is none. Its Listen
// method should be run on the serial port.
func (l *Loop) Console() *console.Console {
	return l.con
}

func (l *Loop) BlinkRate() uint32 {
	return l.blinkRate
}

func (l *Loop) SetBlinkRate(ms uint32) {
	l.blinkRate = ms
}

func (l *Loop) RandomByte() uint8 {
	return uint8(l.rnd.Intn(256))
}

type pixelDescriber interface {
	DescribePixel(i int) (string, error)
}

func (l *Loop) DescribePixel(i int) (string, error) {
	if pd, ok := l.effect.(pixelDescriber); ok {
		return pd.DescribePixel(i)
	}
	if i < 0 || i >= l.pa.NumPixels() {
		return "", errors.Errorf("pixel %d out of range 0-%d", i, l.pa.NumPixels()-1)
	}
	p := l.pa.GetPixel(i)
	return p.String(), nil
}

// Start powers the strip and starts the effect.
func (l *Loop) Start() error {
	if l.power != nil {
		err := l.power.On()
		if err != nil {
			return errors.Wrap(err, "failed power-on")
		}
	}
	err := l.effect.Start(l.pa)
	if err != nil {
		return errors.Wrapf(err, "couldn't start %s", l.effect.Name())
	}
	now := l.clk.Now()
	l.neoTime, l.blinkTime, l.suspendTime = now, now, now
	return nil
}

// Step runs one iteration of the loop: poll the console, step the effect if
// its interval has passed, toggle the heartbeat if the blink period has
// passed and check for suspend. It only blocks while suspended.
func (l *Loop) Step(ctx context.Context) error {
	if l.con != nil {
		l.con.Poll()
	}

	if l.clk.Elapsed(l.neoTime) >= l.effect.Interval() {
		err := l.effect.NextStep(l.pa)
		if err != nil {
			glog.Errorf("%s step failed: %v", l.effect.Name(), err)
		}
		l.neoTime = l.clk.Now()
		l.steps++
		if glog.V(3) {
			glog.Infof("Step %d at %d", l.steps, l.neoTime)
		}
	}

	if l.clk.Elapsed(l.blinkTime) >= l.blinkRate {
		if l.heartbeat != nil {
			err := l.heartbeat.Toggle()
			if err != nil {
				glog.Warningf("Heartbeat toggle failed: %v", err)
			}
		}
		l.blinkTime = l.clk.Now()
	}

	if l.suspend != nil && l.clk.Elapsed(l.suspendTime) >= SuspendCheckInterval {
		l.suspendTime = l.clk.Now()
		s, err := l.suspend.Suspended()
		if err != nil {
			glog.Warningf("Couldn't read suspend state: %v", err)
		} else if s {
			return l.sleep(ctx)
		}
	}
	return nil
}

// sleep blanks the strip, cuts its power and stops the clock until the host
// resumes us. Effect state is left as it was, so the animation carries on
// from where it stopped.
func (l *Loop) sleep(ctx context.Context) error {
	glog.Infof("Suspended after %d steps, blanking strip", l.steps)
	err := l.pa.WriteZero()
	if err != nil {
		glog.Errorf("Couldn't blank strip: %v", err)
	}
	l.clk.Delay(effects.SettleDelay)
	if l.power != nil {
		err = l.power.Off()
		if err != nil {
			glog.Errorf("Failed power-off: %v", err)
		}
	}
	l.clk.Suspend()
	defer l.clk.Resume()

	t := time.NewTicker(l.resumePoll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		s, err := l.suspend.Suspended()
		if err != nil {
			glog.Warningf("Couldn't read suspend state: %v", err)
			continue
		}
		if !s {
			break
		}
	}
	glog.Infof("Resumed")
	if l.power != nil {
		err = l.power.On()
		if err != nil {
			return errors.Wrap(err, "failed power-on after resume")
		}
	}
	return nil
}

// Run starts the effect, then steps whenever the clock ticks or console
// input arrives, until ctx is done or power fails.
func (l *Loop) Run(ctx context.Context) error {
	err := l.Start()
	if err != nil {
		return err
	}
	var input <-chan struct{}
	if l.con != nil {
		input = l.con.Ready()
	}
	for {
		err = l.Step(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clk.Wake():
		case <-input:
		}
	}
}
