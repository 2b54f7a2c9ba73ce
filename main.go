package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tarm/serial"

	clock "github.com/Jon-Bright/ledtwinkle/clock"
	effects "github.com/Jon-Bright/ledtwinkle/effects"
	mainloop "github.com/Jon-Bright/ledtwinkle/mainloop"
	pixarray "github.com/Jon-Bright/ledtwinkle/pixarray"
	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
	version "github.com/Jon-Bright/ledtwinkle/version"
)

var lpd8806Dev = flag.String("dev", "/dev/spidev0.0", "The SPI device on which LPD8806 LEDs are connected")
var lpd8806SpiSpeed = flag.Uint("spispeed", 1000000, "The speed to send data via SPI to LPD8806s, in Hz")
var ws281xFreq = flag.Uint("ws281xfreq", 800000, "The frequency to send data to WS2801x devices, in Hz")
var ws281xDma = flag.Int("ws281xdma", 10, "The DMA channel to use for sending data to WS281x devices")
var ws281xPin0 = flag.Int("ws281xpin0", 18, "The pin on which channel 0 should be output for WS281x devices")
var ledChip = flag.String("ledchip", "ws281x", "The type of LED strip to drive: one of ws281x, lpd8806, none")
var pixels = flag.Int("pixels", effects.NumPixels, "The number of pixels to be controlled")
var pixelOrder = flag.String("order", "GRB", "The color ordering of the pixels")
var tty = flag.String("tty", "/dev/ttyGS0", "The serial device carrying commands. Empty means no command channel.")
var baud = flag.Int("baud", 115200, "The baud rate of the command serial device")
var effectName = flag.String("effect", "twinkle", fmt.Sprintf("The effect to run: one of %v", effects.Names))
var seed = flag.Int64("seed", 2, "Seed for the random number generator")
var blink = flag.Uint("blink", mainloop.DefaultBlinkRate, "Initial heartbeat period in ms")
var heartbeatPin = flag.Int("heartbeatPin", -1, "A GPIO pin toggled as a heartbeat. -1 means the heartbeat is only logged, at -v=2.")
var udcState = flag.String("udcstate", "", "Sysfs state file of the USB device controller, e.g. /sys/class/udc/20980000.usb/state. Empty disables suspend handling.")

func usage() {
	fmt.Fprintln(os.Stderr, path.Base(os.Args[0]), version.String())
	fmt.Fprintln(os.Stderr, "usage: ", os.Args[0], "[options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Twinkles an LED strip, taking commands on a serial line.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}

func init() {
	flag.Usage = usage
}

// needRPi says whether any configured hardware lives on the Pi's peripherals.
func needRPi() bool {
	return *ledChip == "ws281x" || *heartbeatPin >= 0 || *powerCtrlPin >= 0
}

func openStrip(rp *rpi.RPi) (pixarray.Transmitter, error) {
	switch *ledChip {
	case "lpd8806":
		dev, err := os.OpenFile(*lpd8806Dev, os.O_RDWR, os.ModePerm)
		if err != nil {
			return nil, errors.Wrap(err, "failed opening SPI")
		}
		return pixarray.NewLPD8806(dev, *pixels, 3, uint32(*lpd8806SpiSpeed))
	case "ws281x":
		return pixarray.NewWS281x(rp, *pixels, 3, *ws281xFreq, *ws281xDma, []int{*ws281xPin0})
	case "none":
		return &logStrip{}, nil
	}
	return nil, errors.Errorf("unrecognized LED type: %v", *ledChip)
}

// logStrip stands in for a strip when there's no hardware attached.
type logStrip struct{}

func (l *logStrip) MaxPerChannel() int {
	return 255
}

func (l *logStrip) Transmit(b []byte) error {
	if glog.V(3) {
		glog.Infof("Frame % x", b)
	}
	return nil
}

func main() {
	flag.Parse()
	defer glog.Flush()
	glog.Infof("%s %s starting", path.Base(os.Args[0]), version.String())

	order, ok := pixarray.StringOrders[*pixelOrder]
	if !ok {
		glog.Fatalf("Unrecognized pixel order: %v", *pixelOrder)
	}

	var rp *rpi.RPi
	var err error
	if needRPi() {
		rp, err = rpi.NewRPi()
		if err != nil {
			glog.Fatalf("Failed opening RPi: %v", err)
		}
		defer rp.Close()
		err = rp.InitGPIO()
		if err != nil {
			glog.Fatalf("Failed GPIO init: %v", err)
		}
	}

	leds, err := openStrip(rp)
	if err != nil {
		glog.Fatalf("Failed creating %s strip: %v", *ledChip, err)
	}
	if c, ok := leds.(interface{ Close() error }); ok {
		defer c.Close()
	}
	pa, err := pixarray.NewPixArray(*pixels, 3, order, leds)
	if err != nil {
		glog.Fatalf("Failed creating pixel array: %v", err)
	}

	clk := clock.New(clock.DefaultPeriod)
	rnd := rand.New(rand.NewSource(*seed))
	e, err := effects.ByName(*effectName, *pixels, rnd, clk)
	if err != nil {
		glog.Fatalf("Failed creating effect: %v", err)
	}

	cfg := mainloop.Config{
		Clock:     clk,
		Pixels:    pa,
		Effect:    e,
		Rand:      rnd,
		BlinkRate: uint32(*blink),
		Heartbeat: &logHeartbeat{},
	}
	if *heartbeatPin >= 0 {
		cfg.Heartbeat, err = newGPIOHeartbeat(rp, *heartbeatPin)
		if err != nil {
			glog.Fatalf("Failed heartbeat init: %v", err)
		}
	}
	if *powerCtrlPin >= 0 {
		p, err := newLEDPower(rp, *powerCtrlPin, *powerStatusPin, *powerStatusWait)
		if err != nil {
			glog.Fatalf("Failed power init: %v", err)
		}
		cfg.Power = p
	}
	if *udcState != "" {
		cfg.Suspend = udcSuspend(*udcState)
	}

	var port *serial.Port
	if *tty != "" {
		port, err = serial.OpenPort(&serial.Config{Name: *tty, Baud: *baud})
		if err != nil {
			glog.Fatalf("Failed opening %s: %v", *tty, err)
		}
		defer port.Close()
		cfg.ConsoleOut = port
	}

	l, err := mainloop.New(cfg)
	if err != nil {
		glog.Fatalf("Failed creating main loop: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if port != nil {
		go func() {
			err := l.Console().Listen(port)
			if err != nil {
				glog.Errorf("Command channel closed: %v", err)
			}
		}()
	}
	go clk.Run(ctx)

	err = l.Run(ctx)
	glog.Errorf("Main loop ended: %v", err)
}
