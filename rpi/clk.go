package rpi

// Clock manager registers, p107. Every write needs the password in the top byte.
const (
	CM_CLK_CTL_PASSWD  = 0x5a << 24
	CM_CLK_CTL_BUSY    = 1 << 7
	CM_CLK_CTL_KILL    = 1 << 5
	CM_CLK_CTL_ENAB    = 1 << 4
	CM_CLK_CTL_SRC_OSC = 1 << 0
	CM_CLK_DIV_PASSWD  = uint32(0x5a << 24)

	// Spins on the busy flag give up after this many reads.
	cmClkMaxSpins = 1000000
)

type cmClkT struct {
	ctl uint32
	div uint32
}

func cmClkDivI(val uint32) uint32 {
	return (val & 0xfff) << 12
}

// waitClkBusy spins until the clock's busy flag reads as want and returns the
// number of spins it took.
func (rp *RPi) waitClkBusy(want bool) (int, bool) {
	for i := 0; i < cmClkMaxSpins; i++ {
		if ((rp.cmClk.ctl & CM_CLK_CTL_BUSY) != 0) == want {
			return i, true
		}
	}
	return cmClkMaxSpins, false
}
