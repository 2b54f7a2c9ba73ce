package rpi

import (
	"encoding/binary"
	"io/ioutil"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const REVISION_FILE = "/proc/device-tree/system/linux,revision"

type RPi struct {
	mbox     mailbox
	hw       *hw
	dmaBuf   mmap.MMap
	dma      *dmaT
	pwmBuf   mmap.MMap
	pwm      *pwmT
	gpioBuf  mmap.MMap
	gpio     *gpioT
	cmClkBuf mmap.MMap
	cmClk    *cmClkT
}

func NewRPi() (*RPi, error) {
	b, err := ioutil.ReadFile(REVISION_FILE)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read revision")
	}
	if len(b) != 4 {
		return nil, errors.Errorf("revision file has %d instead of 4 bytes", len(b))
	}
	hw, err := detectHardware(binary.BigEndian.Uint32(b))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't detect RPi hardware")
	}
	glog.Infof("Running on %s", hw.name)
	rp := RPi{
		hw: hw,
	}
	err = rp.mboxOpen()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open mailbox")
	}
	return &rp, nil
}

// Close releases the mailbox and every register mapping.
func (rp *RPi) Close() error {
	var err error
	for _, m := range []mmap.MMap{rp.dmaBuf, rp.pwmBuf, rp.gpioBuf, rp.cmClkBuf} {
		if m == nil {
			continue
		}
		if te := m.Unmap(); te != nil && err == nil {
			err = te
		}
	}
	rp.dma, rp.pwm, rp.gpio, rp.cmClk = nil, nil, nil, nil
	rp.dmaBuf, rp.pwmBuf, rp.gpioBuf, rp.cmClkBuf = nil, nil, nil, nil
	if te := rp.mboxClose(); te != nil && err == nil {
		err = te
	}
	return err
}

type hw struct {
	hwType     int
	periphBase uintptr
	vcBase     uintptr
	name       string
}

const (
	RPI_HWVER_TYPE_UNKNOWN = iota
	RPI_HWVER_TYPE_PI1
	RPI_HWVER_TYPE_PI2
	RPI_HWVER_TYPE_PI4

	PERIPH_BASE_RPI  = 0x20000000
	PERIPH_BASE_RPI2 = 0x3f000000
	PERIPH_BASE_RPI4 = 0xfe000000

	VIDEOCORE_BASE_RPI  = 0x40000000
	VIDEOCORE_BASE_RPI2 = 0xc0000000
)

// Fields of a new-style revision code, see
// https://www.raspberrypi.com/documentation/computers/raspberry-pi.html#new-style-revision-codes
const (
	revNewStyle       = 1 << 23
	revProcessorShift = 12
	revProcessorMask  = 0xf
	revTypeShift      = 4
	revTypeMask       = 0xff
)

var processors = []hw{
	{RPI_HWVER_TYPE_PI1, PERIPH_BASE_RPI, VIDEOCORE_BASE_RPI, "BCM2835"},
	{RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "BCM2836"},
	{RPI_HWVER_TYPE_PI2, PERIPH_BASE_RPI2, VIDEOCORE_BASE_RPI2, "BCM2837"},
	{RPI_HWVER_TYPE_PI4, PERIPH_BASE_RPI4, VIDEOCORE_BASE_RPI2, "BCM2711"},
}

var boardTypes = map[uint32]string{
	0x00: "A",
	0x01: "B",
	0x02: "A+",
	0x03: "B+",
	0x04: "2B",
	0x06: "CM1",
	0x08: "3B",
	0x09: "Zero",
	0x0a: "CM3",
	0x0c: "Zero W",
	0x0d: "3B+",
	0x0e: "3A+",
	0x10: "CM3+",
	0x11: "4B",
	0x12: "Zero 2 W",
	0x13: "400",
	0x14: "CM4",
	0x15: "CM4S",
}

// detectHardware works out the peripheral layout from a board revision code.
// Old-style codes (no bit 23) only ever appeared on BCM2835 boards.
func detectHardware(rev uint32) (*hw, error) {
	if rev&revNewStyle == 0 {
		if rev < 0x02 || rev > 0x15 {
			return nil, errors.Errorf("unknown old-style revision %X", rev)
		}
		h := processors[0]
		h.name = "Pi (old-style revision) - " + h.name
		return &h, nil
	}
	p := (rev >> revProcessorShift) & revProcessorMask
	if int(p) >= len(processors) {
		return nil, errors.Errorf("unsupported processor %d in revision %X", p, rev)
	}
	h := processors[p]
	board, ok := boardTypes[(rev>>revTypeShift)&revTypeMask]
	if !ok {
		board = "unknown board"
	}
	h.name = "Pi " + board + " - " + h.name
	return &h, nil
}
