package rpi

import (
	"time"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

type gpioT struct {
	fsel       [6]uint32 // GPIO Function Select
	resvd_0x18 uint32
	set        [2]uint32 // GPIO Pin Output Set
	resvc_0x24 uint32
	clr        [2]uint32 // GPIO Pin Output Clear
	resvd_0x30 uint32
	lev        [2]uint32 // GPIO Pin Level
	resvd_0x3c uint32
	eds        [2]uint32 // GPIO Pin Event Detect Status
	resvd_0x48 uint32
	ren        [2]uint32 // GPIO Pin Rising Edge Detect Enable
	resvd_0x54 uint32
	fen        [2]uint32 // GPIO Pin Falling Edge Detect Enable
	resvd_0x60 uint32
	hen        [2]uint32 // GPIO Pin High Detect Enable
	resvd_0x6c uint32
	len        [2]uint32 // GPIO Pin Low Detect Enable
	resvd_0x78 uint32
	aren       [2]uint32 // GPIO Pin Async Rising Edge Detect
	resvd_0x84 uint32
	afen       [2]uint32 // GPIO Pin Async Falling Edge Detect
	resvd_0x90 uint32
	pud        uint32    // GPIO Pin Pull up/down Enable
	pudclk     [2]uint32 // GPIO Pin Pull up/down Enable Clock
	resvd_0xa0 [4]uint32
	test       uint32
}

type PullMode uint

const (
	// See p101. These are GPPUD values
	PullNone PullMode = 0
	PullDown PullMode = 1
	PullUp   PullMode = 2

	maxPin = 53 // p94
)

// fselShift returns the function select register and bit offset for a pin.
func fselShift(pin int) (int, uint) {
	return pin / 10, uint((pin % 10) * 3)
}

// bankBit returns the register index and bit for a pin in the two-register
// set/clear/level banks.
func bankBit(pin int) (int, uint32) {
	return pin / 32, 1 << uint(pin%32)
}

func (rp *RPi) gpioSetPinFunction(pin int, fnc uint32) error {
	if rp.gpio == nil {
		return errors.New("GPIO not initialised")
	}
	if pin < 0 || pin > maxPin {
		return errors.Errorf("pin %d not supported", pin)
	}
	reg, offset := fselShift(pin)
	rp.gpio.fsel[reg] &= ^(0x7 << offset)
	rp.gpio.fsel[reg] |= fnc << offset
	return nil
}

func (rp *RPi) gpioSetPull(pin int, pm PullMode) error {
	if pm > PullUp {
		return errors.Errorf("%d is an invalid pull mode", pm)
	}
	// See p101 for the description of this procedure.
	rp.gpio.pud = uint32(pm)
	time.Sleep(10 * time.Microsecond) // Datasheet says to sleep for 150 cycles after setting pud
	reg, bit := bankBit(pin)
	rp.gpio.pudclk[reg] = bit
	time.Sleep(10 * time.Microsecond) // Datasheet says to sleep for 150 cycles after setting pudclk
	rp.gpio.pud = 0
	rp.gpio.pudclk[reg] = 0
	return nil
}

func (rp *RPi) GPIOSetInput(pin int, pm PullMode) error {
	err := rp.gpioSetPinFunction(pin, 0)
	if err != nil {
		return errors.Wrap(err, "couldn't set pin as input")
	}
	return rp.gpioSetPull(pin, pm)
}

func (rp *RPi) GPIOSetOutput(pin int, pm PullMode) error {
	err := rp.gpioSetPinFunction(pin, 1)
	if err != nil {
		return errors.Wrap(err, "couldn't set pin as output")
	}
	return rp.gpioSetPull(pin, pm)
}

func (rp *RPi) gpioSetAltFunction(pin int, alt int) error {
	funcs := []uint32{4, 5, 6, 7, 3, 2} // See p92 in datasheet - these are the alt functions only
	if alt < 0 || alt >= len(funcs) {
		return errors.Errorf("%d is an invalid alt function", alt)
	}
	return rp.gpioSetPinFunction(pin, funcs[alt])
}

// GPIOSetPin drives an output pin high or low.
func (rp *RPi) GPIOSetPin(pin int, high bool) error {
	if rp.gpio == nil {
		return errors.New("GPIO not initialised")
	}
	if pin < 0 || pin > maxPin {
		return errors.Errorf("pin %d not supported", pin)
	}
	reg, bit := bankBit(pin)
	if high {
		rp.gpio.set[reg] = bit
	} else {
		rp.gpio.clr[reg] = bit
	}
	return nil
}

func (rp *RPi) GPIOGetPin(pin int) (bool, error) {
	if rp.gpio == nil {
		return false, errors.New("GPIO not initialised")
	}
	if pin < 0 || pin > maxPin {
		return false, errors.Errorf("pin %d not supported", pin)
	}
	reg, bit := bankBit(pin)
	return (rp.gpio.lev[reg] & bit) != 0, nil
}

// InitGPIO maps the GPIO registers. Calling it again is a no-op.
func (rp *RPi) InitGPIO() error {
	if rp.gpio != nil {
		return nil
	}
	var (
		bufOffs uintptr
		err     error
	)
	rp.gpioBuf, bufOffs, err = mapMem(GPIO_OFFSET+rp.hw.periphBase, int(unsafe.Sizeof(gpioT{})))
	if err != nil {
		return errors.Wrapf(err, "couldn't map gpioT at %08X", GPIO_OFFSET+rp.hw.periphBase)
	}
	glog.V(1).Infof("Got gpioBuf[%d], offset %d", len(rp.gpioBuf), bufOffs)
	rp.gpio = (*gpioT)(unsafe.Pointer(&rp.gpioBuf[bufOffs]))
	return nil
}
