package rpi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectHardware(t *testing.T) {
	tests := []struct {
		rev        uint32
		periphBase uintptr
		hwType     int
		name       string
	}{
		{0x000e, PERIPH_BASE_RPI, RPI_HWVER_TYPE_PI1, "Pi (old-style revision) - BCM2835"},
		{0x9000c1, PERIPH_BASE_RPI, RPI_HWVER_TYPE_PI1, "Pi Zero W - BCM2835"},
		{0xa02082, PERIPH_BASE_RPI2, RPI_HWVER_TYPE_PI2, "Pi 3B - BCM2837"},
		{0xa01041, PERIPH_BASE_RPI2, RPI_HWVER_TYPE_PI2, "Pi 2B - BCM2836"},
		{0xc03111, PERIPH_BASE_RPI4, RPI_HWVER_TYPE_PI4, "Pi 4B - BCM2711"},
	}
	for _, test := range tests {
		h, err := detectHardware(test.rev)
		if err != nil {
			t.Errorf("detectHardware(%X) failed: %v", test.rev, err)
			continue
		}
		if h.periphBase != test.periphBase || h.hwType != test.hwType || h.name != test.name {
			t.Errorf("detectHardware(%X), got: %+v", test.rev, *h)
		}
	}
}

func TestDetectHardwareRejectsUnknown(t *testing.T) {
	_, err := detectHardware(0x0001)
	require.Error(t, err)
	_, err = detectHardware(0xd04170) // BCM2712
	require.Error(t, err)
}

func TestPropertyMessage(t *testing.T) {
	p := propertyMessage(tagAllocMem, 8192, PAGE_SIZE, 0xC)
	require.Equal(t, []uint32{36, 0, tagAllocMem, 12, 0, 8192, PAGE_SIZE, 0xC, 0}, p)
	p = propertyMessage(tagFreeMem, 7)
	require.Equal(t, []uint32{28, 0, tagFreeMem, 4, 0, 7, 0}, p)
}

func TestMboxPropertyNeedsOpenMailbox(t *testing.T) {
	rp := &RPi{}
	_, err := rp.mboxCall(tagLockMem, 1)
	require.Error(t, err)
}

func TestBusToPhys(t *testing.T) {
	require.Equal(t, uintptr(0x1e000000), busToPhys(0xde000000))
	require.Equal(t, uintptr(0x00001000), busToPhys(0x40001000))
}

func TestDmaOffset(t *testing.T) {
	o, ok := dmaOffset(0)
	require.True(t, ok)
	require.Equal(t, uintptr(0x7000), o)
	o, ok = dmaOffset(10)
	require.True(t, ok)
	require.Equal(t, uintptr(0x7a00), o)
	o, ok = dmaOffset(15)
	require.True(t, ok)
	require.Equal(t, uintptr(0xe05000), o)
	_, ok = dmaOffset(16)
	require.False(t, ok)
	_, ok = dmaOffset(-1)
	require.False(t, ok)
}

func TestCalcDMABufSize(t *testing.T) {
	require.Equal(t, uint32(PAGE_SIZE), calcDMABufSize(936))
	require.Equal(t, uint32(2*PAGE_SIZE), calcDMABufSize(PAGE_SIZE-32))
}

func TestPwmClockDivisor(t *testing.T) {
	require.Equal(t, uint32(8), pwmClockDivisor(OSC_FREQ, 800000))
	require.Equal(t, uint32(22), pwmClockDivisor(OSC_FREQ_PI4, 800000))
}

func TestGPIOPins(t *testing.T) {
	rp := &RPi{gpio: &gpioT{}}
	require.NoError(t, rp.gpioSetPinFunction(18, 1))
	require.Equal(t, uint32(1<<24), rp.gpio.fsel[1])
	require.NoError(t, rp.gpioSetAltFunction(18, 5))
	require.Equal(t, uint32(2<<24), rp.gpio.fsel[1])

	require.NoError(t, rp.GPIOSetPin(35, true))
	require.Equal(t, uint32(1<<3), rp.gpio.set[1])
	require.NoError(t, rp.GPIOSetPin(4, false))
	require.Equal(t, uint32(1<<4), rp.gpio.clr[0])

	rp.gpio.lev[0] = 1 << 7
	v, err := rp.GPIOGetPin(7)
	require.NoError(t, err)
	require.True(t, v)
	v, err = rp.GPIOGetPin(8)
	require.NoError(t, err)
	require.False(t, v)

	require.Error(t, rp.GPIOSetPin(54, true))
	require.Error(t, rp.gpioSetAltFunction(18, 6))
	require.Error(t, rp.GPIOSetOutput(4, PullMode(3)))
}

func TestGPIONotInitialised(t *testing.T) {
	rp := &RPi{}
	require.Error(t, rp.GPIOSetPin(4, true))
	_, err := rp.GPIOGetPin(4)
	require.Error(t, err)
	require.Error(t, rp.GPIOSetOutput(4, PullNone))
}

func TestStopPWMBeforeInit(t *testing.T) {
	rp := &RPi{}
	rp.StopPWM()
}
