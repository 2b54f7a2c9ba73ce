//go:build !tinygo

package pixarray

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	rpi "github.com/Jon-Bright/ledtwinkle/rpi"
)

const (
	SYMBOL_HIGH = 0x6 // 1 1 0
	SYMBOL_LOW  = 0x4 // 1 0 0

	LED_RESET_US = 55
)

// WS281x drives WS2811/WS2812 strips from the Raspberry Pi's PWM block, fed
// by DMA. Each data bit becomes a three-bit PWM symbol, so the wire timing is
// produced by the hardware and nothing here is timing critical.
type WS281x struct {
	rp       *rpi.RPi
	numBytes int
	buf      *rpi.DMABuf
	words    []uint32
}

// pwmByteCount calculates the number of bytes needed to store the data for PWM to send - three
// bits per WS281x bit, plus enough bits to provide an appropriate reset time afterwards at the
// given frequency. It returns that byte count, covering both PWM channels.
func pwmByteCount(numBytes int, freq uint) uint {
	// Every bit transmitted needs 3 bits of buffer, because bits are transmitted as
	// ‾|__ (0) or ‾‾|_ (1).
	bits := uint(numBytes * 8 * 3)

	// At 800kHz, 55us of reset is 132 bits of buffer: 44 "real" bits at 1/800000s each.
	bits += ((LED_RESET_US * (freq * 3)) / 1000000)

	bytes := bits / 8

	// Round up to next uint32
	bytes -= bytes % 4
	bytes += 4

	bytes *= rpi.RPI_PWM_CHANNELS

	return bytes
}

func NewWS281x(rp *rpi.RPi, numPixels int, numColors int, freq uint, dma int, pins []int) (*WS281x, error) {
	err := rp.InitDMA(dma)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't init DMA %d", dma)
	}
	err = rp.InitGPIO()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't init GPIO")
	}
	numBytes := numPixels * numColors
	bytes := pwmByteCount(numBytes, freq)
	buf, err := rp.GetDMABuf(bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get %d byte DMA buffer", bytes)
	}
	err = rp.InitPWM(freq, buf, bytes, pins)
	if err != nil {
		rp.FreeDMABuf(buf) // Ignore error
		return nil, errors.Wrap(err, "couldn't init PWM")
	}
	glog.Infof("WS281x ready: %d bytes/frame, %d bytes PWM data at %d Hz on pins %v", numBytes, bytes, freq, pins)
	return &WS281x{
		rp:       rp,
		numBytes: numBytes,
		buf:      buf,
		words:    buf.Uint32Slice(),
	}, nil
}

func (ws *WS281x) MaxPerChannel() int {
	return 255
}

// encodeSymbols writes b as PWM symbols for the given channel. Channels are
// interleaved word by word, so channel c owns words c, c+2, c+4...
func encodeSymbols(words []uint32, channel int, b []byte) {
	pos := channel
	bitPos := 31
	for _, v := range b {
		for k := 7; k >= 0; k-- {
			symbol := SYMBOL_LOW
			if (v & (1 << uint(k))) != 0 {
				symbol = SYMBOL_HIGH
			}
			for l := 2; l >= 0; l-- {
				words[pos] &= ^(1 << uint(bitPos))
				if (symbol & (1 << uint(l))) != 0 {
					words[pos] |= 1 << uint(bitPos)
				}
				bitPos--
				if bitPos < 0 {
					pos += rpi.RPI_PWM_CHANNELS
					bitPos = 31
				}
			}
		}
	}
}

// Transmit encodes b, starts the DMA and waits for it to finish. The words
// after the data are never written and stay zero: that's the reset gap.
func (ws *WS281x) Transmit(b []byte) error {
	if len(b) > ws.numBytes {
		return errors.Errorf("frame of %d bytes, strip takes %d", len(b), ws.numBytes)
	}
	// TODO: drive the second channel from its own strip once there's a use for it
	for c := 0; c < rpi.RPI_PWM_CHANNELS; c++ {
		encodeSymbols(ws.words, c, b)
	}
	ws.rp.StartDMA(ws.buf)
	err := ws.rp.WaitForDMAEnd()
	if err != nil {
		return errors.Wrap(err, "DMA wait failed")
	}
	return nil
}

func (ws *WS281x) Close() error {
	err := ws.rp.WaitForDMAEnd()
	if err != nil {
		glog.Warningf("DMA still busy on close: %v", err)
	}
	ws.rp.StopPWM()
	return ws.rp.FreeDMABuf(ws.buf)
}
