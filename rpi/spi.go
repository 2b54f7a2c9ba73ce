package rpi

import (
	"github.com/pkg/errors"
)

const (
	SPI_IOC_MAGIC           = 'k'
	SPI_IOC_WR_MAX_SPEED_HZ = 4
)

// SetSPISpeed sets the maximum clock rate of an open spidev device.
func SetSPISpeed(fd uintptr, s uint32) error {
	err := ioctlUint32(fd, iow(SPI_IOC_MAGIC, SPI_IOC_WR_MAX_SPEED_HZ, uint32(0)), s)
	if err != nil {
		return errors.Wrapf(err, "couldn't set SPI speed %d", s)
	}
	return nil
}
