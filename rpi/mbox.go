package rpi

import (
	"fmt"
	"os"
	"path"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Many details here are from the BCM2835 reference at
// https://www.raspberrypi.org/app/uploads/2012/02/BCM2835-ARM-Peripherals.pdf
// Their page numbers are noted below
// The mailbox that most of this file deals with is documented at
// https://github.com/raspberrypi/firmware/wiki/Mailbox-property-interface

const (
	VIDEOCORE_MAJOR_NUM = 100
	MEM_FILE            = "/dev/mem"
	VCIO_FILE           = "/dev/vcio"
	MBOX_DEV            = 100 << 20 // Assumes devices have 12-bit major, 20-bit minor numbers
	MBOX_MODE           = 0600
	RPI_PWM_CHANNELS    = 2

	tagAllocMem  = 0x3000c
	tagLockMem   = 0x3000d
	tagUnlockMem = 0x3000e
	tagFreeMem   = 0x3000f

	tagResponse = 0x80000000
)

type mailbox interface {
	Fd() uintptr
	Close() error
}

type PhysBuf struct {
	handle  uintptr
	busAddr uintptr
	buf     mmap.MMap
	offs    uintptr
}

// uint32Slice returns the physical buffer as a []uint32, starting offs bytes past the start of
// the area we asked for (MMaps always start on a page boundary, so pb.offs is added too).
func (pb *PhysBuf) uint32Slice(offs uintptr) []uint32 {
	offs += pb.offs
	n := (uintptr(len(pb.buf)) - offs) / 4
	return unsafe.Slice((*uint32)(unsafe.Pointer(&pb.buf[offs])), n)
}

func (rp *RPi) FreePhysBuf(pb *PhysBuf) error {
	var err, te error
	if pb.buf != nil {
		err = pb.buf.Unmap()
		pb.buf = nil
		// Ignore error, return it later
	}
	if pb.busAddr != 0 {
		pb.busAddr = 0
		te = rp.unlockVCMem(pb.handle)
		if err == nil {
			err = te
		}
	}
	if pb.handle != 0 {
		te = rp.freeVCMem(pb.handle)
		pb.handle = 0
		if err == nil {
			err = te
		}
	}
	return err
}

// getPhysBuf gets a buffer of Videocore memory that can be used for DMA or other purposes.
func (rp *RPi) getPhysBuf(size uint32) (*PhysBuf, error) {
	pb := PhysBuf{}
	var err error
	pb.handle, err = rp.allocVCMem(size)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't allocMem of size %v", size)
	}
	pb.busAddr, err = rp.lockVCMem(pb.handle)
	if err != nil {
		rp.freeVCMem(pb.handle) // Ignore error
		return nil, errors.Wrapf(err, "couldn't lockMem(%X) of size %v", pb.handle, size)
	}
	pb.buf, pb.offs, err = mapMem(busToPhys(pb.busAddr), int(size))
	if err != nil {
		rp.unlockVCMem(pb.handle) // Ignore error
		rp.freeVCMem(pb.handle)   // Ignore error
		return nil, errors.Wrapf(err, "couldn't map busAddr(%X) of size %v", pb.busAddr, size)
	}
	glog.V(1).Infof("mapped %d bytes, busaddr %08X, offset %d", size, pb.busAddr, pb.offs)
	return &pb, nil
}

// busToPhys converts a BCM2835 bus address to a physical address
func busToPhys(busAddr uintptr) uintptr {
	return busAddr &^ 0xC0000000 // p7
}

// mapMem opens /dev/mem and uses mmap to map a given physical address into our address space.
// Since the mapping has to start at a page boundary, the physical address is rounded down to the
// nearest page boundary. mapMem returns the mapped memory and the offset that should be used to
// access it (=physAddr%PAGE_SIZE).
func mapMem(physAddr uintptr, size int) (mmap.MMap, uintptr, error) {
	f, err := os.OpenFile(MEM_FILE, os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "couldn't open %s", MEM_FILE)
	}
	defer f.Close() // Ignore error

	pagemask := ^uintptr(PAGE_SIZE - 1)
	mapAddr := physAddr & pagemask
	size += int(physAddr - mapAddr)
	glog.V(2).Infof("MapRegion(f, %d, RDWR, 0, %08X), physAddr %08X", size, int64(mapAddr), physAddr)
	mm, err := mmap.MapRegion(f, size, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "couldn't map region (%08X, %v)", physAddr, size)
	}
	return mm, physAddr & (PAGE_SIZE - 1), nil
}

// mboxOpenTemp creates a temporary device node for ioctl-ing with the mailbox, opens it and
// immediately removes the node once it's open.
func (rp *RPi) mboxOpenTemp() error {
	tf := path.Join(os.TempDir(), fmt.Sprintf("mailbox-%d", os.Getpid()))
	err := os.Remove(tf)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "couldn't remove temp mbox")
	}
	err = unix.Mknod(tf, unix.S_IFCHR|MBOX_MODE, MBOX_DEV)
	if err != nil {
		return errors.Wrap(err, "couldn't make device node")
	}
	f, err := os.OpenFile(tf, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return errors.Wrap(err, "couldn't open temp mbox")
	}
	err = os.Remove(tf)
	if err != nil {
		f.Close() // Ignore error
		return errors.Wrap(err, "couldn't remove temp mbox")
	}
	rp.mbox = f
	return nil
}

// mboxOpen opens /dev/vcio for ioctl-ing with the mailbox. If that doesn't exist, it passes instead
// to mboxOpenTemp to get a temporary node.
func (rp *RPi) mboxOpen() error {
	f, err := os.OpenFile(VCIO_FILE, os.O_RDONLY, os.ModePerm)
	if os.IsNotExist(err) {
		return rp.mboxOpenTemp()
	}
	if err != nil {
		return errors.Wrapf(err, "couldn't open %s", VCIO_FILE)
	}
	rp.mbox = f
	return nil
}

func (rp *RPi) mboxClose() error {
	if rp.mbox == nil {
		return nil
	}
	err := rp.mbox.Close()
	rp.mbox = nil
	return err
}

// mboxProperty uses ioctl to send messages via the mailbox
func (rp *RPi) mboxProperty(buf []uint32) error {
	if rp.mbox == nil {
		return errors.New("mailbox not open")
	}
	mboxProperty := iowr(VIDEOCORE_MAJOR_NUM, 0, uintptr(0))
	err := ioctlArrUint32(rp.mbox.Fd(), mboxProperty, buf)
	if err != nil {
		return errors.Wrap(err, "failed ioctl mbox property")
	}
	return nil
}

// propertyMessage builds a single-tag mailbox message: total size, request code, tag, value size,
// request/response indicator, the values, and the end tag.
func propertyMessage(tag uint32, vals ...uint32) []uint32 {
	p := make([]uint32, 0, 32)
	p = append(p, 0)          // size, filled in below
	p = append(p, 0x00000000) // process request
	p = append(p, tag)
	p = append(p, uint32(len(vals)*4)) // size of the tag value to follow
	p = append(p, 0)                   // bit 31 cleared, rest is reserved
	p = append(p, vals...)
	p = append(p, 0) // no more tags
	p[0] = uint32(len(p) * 4)
	return p
}

// mboxCall sends one tag and returns the first word of the response value.
func (rp *RPi) mboxCall(tag uint32, vals ...uint32) (uint32, error) {
	p := propertyMessage(tag, vals...)
	err := rp.mboxProperty(p)
	if err != nil {
		return 0, errors.Wrapf(err, "mboxProperty for tag %X failed", tag)
	}
	if p[4]&tagResponse == 0 {
		return 0, errors.Errorf("response tag unset: %v", p[4])
	}
	return p[5], nil // first part of the tag value
}

func (rp *RPi) allocVCMem(size uint32) (uintptr, error) {
	// Unclear why this differs: rpi_ws281x has no comment here and the commit that added it
	// was just "Finish RPI2 changes. Ready for testing."
	flags := uint32(0x4) // MEM_FLAG_DIRECT
	if rp.hw.vcBase == VIDEOCORE_BASE_RPI {
		flags = 0xC // MEM_FLAG_L1_NONALLOCATING
	}
	h, err := rp.mboxCall(tagAllocMem, size, PAGE_SIZE, flags)
	if err != nil {
		return 0, err
	}
	if h == 0 {
		return 0, errors.New("out of memory")
	}
	return uintptr(h), nil
}

func (rp *RPi) freeVCMem(handle uintptr) error {
	status, err := rp.mboxCall(tagFreeMem, uint32(handle))
	if err != nil {
		return err
	}
	if status != 0 {
		return errors.Errorf("status non-zero: %v", status)
	}
	return nil
}

func (rp *RPi) lockVCMem(handle uintptr) (uintptr, error) {
	a, err := rp.mboxCall(tagLockMem, uint32(handle))
	return uintptr(a), err
}

func (rp *RPi) unlockVCMem(handle uintptr) error {
	status, err := rp.mboxCall(tagUnlockMem, uint32(handle))
	if err != nil {
		return err
	}
	if status != 0 {
		return errors.Errorf("status non-zero: %v", status)
	}
	return nil
}
