package rpi

import (
	"time"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

type pwmPin struct {
	channel int
	pin     int
}

// Mapping of PWM channel/pin numbers to which "alt" function means "PWM". See p102 of datasheet.
var pwmPinToAlt = map[pwmPin]int{
	{0, 12}: 0,
	{0, 18}: 5,
	{0, 40}: 0,
	{1, 13}: 0,
	{1, 19}: 5,
	{1, 41}: 0,
	{1, 45}: 0,
}

const (
	RPI_PWM_CTL_USEF2 = 1 << 13
	RPI_PWM_CTL_MODE2 = 1 << 9
	RPI_PWM_CTL_PWEN2 = 1 << 8
	RPI_PWM_CTL_CLRF1 = 1 << 6
	RPI_PWM_CTL_USEF1 = 1 << 5
	RPI_PWM_CTL_MODE1 = 1 << 1
	RPI_PWM_CTL_PWEN1 = 1 << 0
	RPI_PWM_DMAC_ENAB = uint32(1 << 31)
)

type pwmT struct {
	ctl        uint32
	sta        uint32
	dmac       uint32
	resvd_0x0c uint32
	rng1       uint32
	dat1       uint32
	fif1       uint32
	resvd_0x1c uint32
	rng2       uint32
	dat2       uint32
}

func rpiPwmDmacPanic(val uint32) uint32 {
	return (val & 0xff) << 8
}

func rpiPwmDmacDreq(val uint32) uint32 {
	return (val & 0xff) << 0
}

// pwmClockDivisor gives the integer divisor for the PWM clock so that three
// PWM bits go out per strip bit at freq.
func pwmClockDivisor(oscFreq uint32, freq uint) uint32 {
	return oscFreq / (3 * uint32(freq))
}

func (rp *RPi) mapPWM() error {
	if rp.pwmBuf != nil {
		return nil
	}
	var (
		bufOffs uintptr
		err     error
	)
	rp.pwmBuf, bufOffs, err = mapMem(PWM_OFFSET+rp.hw.periphBase, int(unsafe.Sizeof(pwmT{})))
	if err != nil {
		return errors.Wrapf(err, "couldn't map pwmT at %08X", PWM_OFFSET+rp.hw.periphBase)
	}
	glog.V(1).Infof("Got pwmBuf[%d], offset %d", len(rp.pwmBuf), bufOffs)
	rp.pwm = (*pwmT)(unsafe.Pointer(&rp.pwmBuf[bufOffs]))

	rp.cmClkBuf, bufOffs, err = mapMem(CM_PWM_OFFSET+rp.hw.periphBase, int(unsafe.Sizeof(cmClkT{})))
	if err != nil {
		return errors.Wrapf(err, "couldn't map cmClkT at %08X", CM_PWM_OFFSET+rp.hw.periphBase)
	}
	glog.V(1).Infof("Got cmClkBuf[%d], offset %d", len(rp.cmClkBuf), bufOffs)
	rp.cmClk = (*cmClkT)(unsafe.Pointer(&rp.cmClkBuf[bufOffs]))
	return nil
}

// InitPWM routes pins to the PWM block, starts its clock at three times freq and points the DMA
// control block in buf at the PWM FIFO. InitDMA and InitGPIO must have been called first.
func (rp *RPi) InitPWM(freq uint, buf *DMABuf, bytes uint, pins []int) error {
	if freq == 0 {
		return errors.New("PWM frequency must be non-zero")
	}
	if rp.dma == nil {
		return errors.New("DMA not initialised")
	}
	oscFreq := uint32(OSC_FREQ)
	if rp.hw.hwType == RPI_HWVER_TYPE_PI4 {
		oscFreq = OSC_FREQ_PI4
	}

	for channel, pin := range pins {
		alt, ok := pwmPinToAlt[pwmPin{channel, pin}]
		if !ok {
			return errors.Errorf("invalid pin %d for PWM channel %d", pin, channel)
		}
		err := rp.gpioSetAltFunction(pin, alt)
		if err != nil {
			return errors.Wrapf(err, "couldn't route pin %d to PWM", pin)
		}
	}

	err := rp.mapPWM()
	if err != nil {
		return err
	}

	rp.StopPWM()

	rp.cmClk.div = CM_CLK_DIV_PASSWD | cmClkDivI(pwmClockDivisor(oscFreq, freq))
	rp.cmClk.ctl = CM_CLK_CTL_PASSWD | CM_CLK_CTL_SRC_OSC
	rp.cmClk.ctl = CM_CLK_CTL_PASSWD | CM_CLK_CTL_SRC_OSC | CM_CLK_CTL_ENAB
	time.Sleep(10 * time.Microsecond)
	n, ok := rp.waitClkBusy(true)
	if !ok {
		return errors.New("PWM clock never went busy")
	}
	glog.V(2).Infof("cmClk busy after %d spins", n)

	// Set up the PWM, use delays as the block is rumored to lock up without them.  Make
	// sure to use a high enough priority to avoid any FIFO underruns, especially if
	// the CPU is busy doing lots of memory accesses, or another DMA controller is
	// busy.  The FIFO will clock out data at a much slower rate (2.6Mhz max), so
	// the odds of a DMA priority boost are extremely low.

	rp.pwm.rng1 = 32 // 32-bits per word to serialize
	time.Sleep(10 * time.Microsecond)
	rp.pwm.ctl = RPI_PWM_CTL_CLRF1
	time.Sleep(10 * time.Microsecond)
	rp.pwm.dmac = RPI_PWM_DMAC_ENAB | rpiPwmDmacPanic(7) | rpiPwmDmacDreq(3)
	time.Sleep(10 * time.Microsecond)
	rp.pwm.ctl = RPI_PWM_CTL_USEF1 | RPI_PWM_CTL_MODE1 | RPI_PWM_CTL_USEF2 | RPI_PWM_CTL_MODE2
	time.Sleep(10 * time.Microsecond)
	rp.pwm.ctl |= RPI_PWM_CTL_PWEN1 | RPI_PWM_CTL_PWEN2

	// Initialize the DMA control block
	buf.c.ti = RPI_DMA_TI_NO_WIDE_BURSTS | // 32-bit transfers
		RPI_DMA_TI_WAIT_RESP | // wait for write complete
		RPI_DMA_TI_DEST_DREQ | // user peripheral flow control
		rpiDmaTiPerMap(5) | // PWM peripheral
		RPI_DMA_TI_SRC_INC // Increment src addr

	buf.c.sourceAd = uint32(buf.pb.busAddr + unsafe.Sizeof(dmaControl{}))
	buf.c.destAd = PWM_PERIPH_PHYS + uint32(unsafe.Offsetof(rp.pwm.fif1))
	buf.c.txLen = uint32(bytes)
	buf.c.stride = 0
	buf.c.nextconbk = 0
	glog.V(1).Infof("DMA sourceAd %08X, txLen %d", buf.c.sourceAd, buf.c.txLen)

	rp.dma.cs = 0
	rp.dma.txLen = 0
	return nil
}

// StopPWM turns off the PWM block and kills its clock. It is safe to call
// before InitPWM.
func (rp *RPi) StopPWM() {
	if rp.pwm == nil || rp.cmClk == nil {
		return
	}
	rp.pwm.ctl = 0
	time.Sleep(10 * time.Microsecond)

	rp.cmClk.ctl = CM_CLK_CTL_PASSWD | CM_CLK_CTL_KILL
	time.Sleep(10 * time.Microsecond)
	n, ok := rp.waitClkBusy(false)
	if !ok {
		glog.Warningf("PWM clock still busy after %d spins", n)
		return
	}
	glog.V(2).Infof("cmClk idle after %d spins", n)
}
