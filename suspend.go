package main

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// udcSuspend reads a USB device controller's sysfs state file. The gadget
// driver writes "suspended" there while the host has the bus suspended.
type udcSuspend string

func (u udcSuspend) Suspended() (bool, error) {
	b, err := ioutil.ReadFile(string(u))
	if err != nil {
		return false, errors.Wrapf(err, "couldn't read %s", string(u))
	}
	return strings.TrimSpace(string(b)) == "suspended", nil
}
