package rpi

import (
	"encoding/hex"
	"time"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	PAGE_SIZE       = 4096 // Theoretically, we could get this via whatever getconf does
	PWM_OFFSET      = uintptr(0x0020c000)
	GPIO_OFFSET     = uintptr(0x00200000)
	CM_PWM_OFFSET   = uintptr(0x001010a0)
	PWM_PERIPH_PHYS = uint32(0x7e20c000)
	OSC_FREQ        = 19200000 // crystal frequency
	OSC_FREQ_PI4    = 54000000 // Pi 4 crystal frequency

	dmaWaitPolls = 100000
)

// DMA channels 0-14 sit 0x100 apart, channel 15 is elsewhere entirely (p39).
func dmaOffset(dma int) (uintptr, bool) {
	switch {
	case dma >= 0 && dma <= 14:
		return 0x00007000 + uintptr(dma)*0x100, true
	case dma == 15:
		return 0x00e05000, true
	}
	return 0, false
}

const (
	RPI_DMA_CS_RESET                      = 1 << 31
	RPI_DMA_CS_WAIT_OUTSTANDING_WRITES    = 1 << 28
	RPI_DMA_CS_ERROR                      = 1 << 8
	RPI_DMA_CS_WAITING_OUTSTANDING_WRITES = 1 << 6
	RPI_DMA_CS_INT                        = 1 << 2
	RPI_DMA_CS_END                        = 1 << 1
	RPI_DMA_CS_ACTIVE                     = 1 << 0
	RPI_DMA_TI_NO_WIDE_BURSTS             = 1 << 26
	RPI_DMA_TI_SRC_INC                    = 1 << 8
	RPI_DMA_TI_DEST_DREQ                  = 1 << 6
	RPI_DMA_TI_WAIT_RESP                  = 1 << 3
)

type dmaT struct {
	cs        uint32
	conblkAd  uint32
	ti        uint32
	sourceAd  uint32
	destAd    uint32
	txLen     uint32
	stride    uint32
	nextConBk uint32
	debug     uint32
}

type dmaControl struct {
	ti        uint32
	sourceAd  uint32
	destAd    uint32
	txLen     uint32
	stride    uint32
	nextconbk uint32
	resvd1    uint32
	resvd2    uint32
}

// DMABuf is a control block followed by the data it transfers, in one piece
// of physically contiguous Videocore memory.
type DMABuf struct {
	pb *PhysBuf
	c  *dmaControl
}

func (rp *RPi) GetDMABuf(bytes uint) (*DMABuf, error) {
	var d DMABuf
	var err error
	size := calcDMABufSize(bytes)
	d.pb, err = rp.getPhysBuf(size)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get %d byte physical buffer for DMA", bytes)
	}
	d.c = (*dmaControl)(unsafe.Pointer(&d.pb.buf[d.pb.offs]))
	glog.V(1).Infof("dmabuf size %d, calc %d, addr %08X", bytes, size, uintptr(unsafe.Pointer(d.c)))
	return &d, nil
}

func (rp *RPi) FreeDMABuf(d *DMABuf) error {
	return rp.FreePhysBuf(d.pb)
}

// Uint32Slice returns the data area following the control block.
func (d *DMABuf) Uint32Slice() []uint32 {
	return d.pb.uint32Slice(unsafe.Sizeof(dmaControl{}))
}

// calcDMABufSize calculates how many bytes should be allocated to provide a DMA buffer with the given number of
// bytes, including the dmaControl header.
func calcDMABufSize(bytes uint) uint32 {
	bytes += uint(unsafe.Sizeof(dmaControl{}))

	// Our actual size is then whatever the next multiple of PAGE_SIZE is
	return uint32(((bytes / PAGE_SIZE) + 1) * PAGE_SIZE)
}

func (rp *RPi) InitDMA(dma int) error {
	offset, ok := dmaOffset(dma)
	if !ok {
		return errors.Errorf("no offset found for DMA %d", dma)
	}
	offset += rp.hw.periphBase
	var (
		bufOffs uintptr
		err     error
	)
	rp.dmaBuf, bufOffs, err = mapMem(offset, int(unsafe.Sizeof(dmaT{})))
	if err != nil {
		return errors.Wrapf(err, "couldn't map dmaT at %08X", offset)
	}
	glog.V(1).Infof("Got dmaBuf[%d], offset %d", len(rp.dmaBuf), bufOffs)
	rp.dma = (*dmaT)(unsafe.Pointer(&rp.dmaBuf[bufOffs]))
	return nil
}

func rpiDmaCsPanicPriority(val uint32) uint32 {
	return (val & 0xf) << 20
}

func rpiDmaCsPriority(val uint32) uint32 {
	return (val & 0xf) << 16
}

func rpiDmaTiPerMap(val uint32) uint32 {
	return (val & 0x1f) << 16
}

func (rp *RPi) StartDMA(d *DMABuf) {
	if glog.V(3) {
		glog.Infof("DMA to do: control %+v\nData:\n%s", *d.c, hex.Dump(d.pb.buf))
	}
	rp.dma.cs = RPI_DMA_CS_RESET
	time.Sleep(10 * time.Microsecond)

	rp.dma.cs = RPI_DMA_CS_INT | RPI_DMA_CS_END
	time.Sleep(10 * time.Microsecond)

	rp.dma.conblkAd = uint32(d.pb.busAddr)
	rp.dma.debug = 7 // clear debug error flags
	rp.dma.cs = RPI_DMA_CS_WAIT_OUTSTANDING_WRITES |
		rpiDmaCsPanicPriority(15) |
		rpiDmaCsPriority(15) |
		RPI_DMA_CS_ACTIVE
}

func (rp *RPi) WaitForDMAEnd() error {
	var cs uint32
	for i := 0; ; i++ {
		cs = rp.dma.cs
		if (cs&RPI_DMA_CS_ACTIVE) == 0 || (cs&RPI_DMA_CS_ERROR) != 0 {
			break
		}
		if i == dmaWaitPolls {
			return errors.Errorf("wait failed, cs %08X", cs)
		}
		time.Sleep(10 * time.Microsecond)
	}
	if (cs & RPI_DMA_CS_ERROR) != 0 {
		return errors.Errorf("DMA error, cs %08X, debug %08X", cs, rp.dma.debug)
	}
	return nil
}
