package pixarray

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testLeds struct {
	frames [][]byte
	err    error
}

func (l *testLeds) MaxPerChannel() int {
	return 255
}

func (l *testLeds) Transmit(b []byte) error {
	f := make([]byte, len(b))
	copy(f, b)
	l.frames = append(l.frames, f)
	return l.err
}

func newTestArray(t testing.TB, numPixels int, order int) (*PixArray, *testLeds) {
	leds := &testLeds{}
	pa, err := NewPixArray(numPixels, 3, order, leds)
	if err != nil {
		t.Fatalf("Failed NewPixArray: %v", err)
	}
	return pa, leds
}

func TestNewPixArrayRejectsBadArgs(t *testing.T) {
	_, err := NewPixArray(0, 3, GRB, &testLeds{})
	require.Error(t, err)
	_, err = NewPixArray(10, 5, GRB, &testLeds{})
	require.Error(t, err)
	_, err = NewPixArray(10, 3, 99, &testLeds{})
	require.Error(t, err)
	_, err = NewPixArray(10, 3, GRB, nil)
	require.Error(t, err)
}

func TestSetOneThenGetOneByOne(t *testing.T) {
	pa, _ := newTestArray(t, 100, GRB)
	ps := Pixel{10, 25, 45, 0}
	pb := Pixel{0, 0, 0, 0}
	pa.SetOne(20, ps)
	for i := 0; i < 100; i++ {
		pg := pa.GetPixel(i)
		if i == 20 && pg != ps {
			t.Errorf("Set pixel incorrect, got: %v, want %v", pg, ps)
		} else if i != 20 && pg != pb {
			t.Errorf("Unset pixel incorrect, got: %v, want %v", pg, pb)
		}
	}
}

func TestSetOneThenGetAll(t *testing.T) {
	pa, _ := newTestArray(t, 100, GRB)
	ps := Pixel{10, 25, 45, 0}
	pb := Pixel{0, 0, 0, 0}
	pa.SetOne(20, ps)
	py := pa.GetPixels()
	if len(py) != 100 {
		t.Errorf("Incorrect array len, got: %d, want: 100", len(py))
	}
	for i := 0; i < 100; i++ {
		if i == 20 && py[i] != ps {
			t.Errorf("Set pixel incorrect, got: %v, want %v", py[i], ps)
		} else if i != 20 && py[i] != pb {
			t.Errorf("Unset pixel incorrect, got: %v, want %v", py[i], pb)
		}
	}
}

func TestRenderGRBGammaCorrected(t *testing.T) {
	pa, leds := newTestArray(t, 50, GRB)
	for i := 0; i < 50; i++ {
		pa.SetOne(i, Pixel{R: i * 5, G: 255 - i*5, B: i * 2})
	}
	require.NoError(t, pa.Write())
	require.Len(t, leds.frames, 1)
	f := leds.frames[0]
	require.Len(t, f, 150)
	for i := 0; i < 50; i++ {
		if got, want := f[3*i], Gamma(uint8(255-i*5)); got != want {
			t.Errorf("Pixel %d green, got: %d, want %d", i, got, want)
		}
		if got, want := f[3*i+1], Gamma(uint8(i*5)); got != want {
			t.Errorf("Pixel %d red, got: %d, want %d", i, got, want)
		}
		if got, want := f[3*i+2], Gamma(uint8(i*2)); got != want {
			t.Errorf("Pixel %d blue, got: %d, want %d", i, got, want)
		}
	}
}

func TestOrders(t *testing.T) {
	p := Pixel{R: 255, G: 128, B: 64}
	r, g, b := Gamma(255), Gamma(128), Gamma(64)
	tests := []struct {
		order string
		want  []byte
	}{
		{"GRB", []byte{g, r, b}},
		{"RGB", []byte{r, g, b}},
		{"BRG", []byte{b, r, g}},
		{"BGR", []byte{b, g, r}},
		{"GBR", []byte{g, b, r}},
		{"RBG", []byte{r, b, g}},
	}
	for _, test := range tests {
		pa, _ := newTestArray(t, 1, StringOrders[test.order])
		pa.SetOne(0, p)
		if got := pa.Bytes(); !bytes.Equal(got, test.want) {
			t.Errorf("%s: got: %v, want %v", test.order, got, test.want)
		}
	}
}

func TestFourColors(t *testing.T) {
	leds := &testLeds{}
	pa, err := NewPixArray(2, 4, GRB, leds)
	require.NoError(t, err)
	pa.SetAll(Pixel{R: 255, G: 0, B: 0, W: 255})
	require.Equal(t, []byte{0, 255, 0, 255, 0, 255, 0, 255}, pa.Bytes())
}

func TestSetOneClamps(t *testing.T) {
	pa, _ := newTestArray(t, 1, GRB)
	pa.SetOne(0, Pixel{R: 300, G: -4, B: 255})
	require.Equal(t, []byte{0, 255, 255}, pa.Bytes())
}

func TestWriteZeroKeepsPixels(t *testing.T) {
	pa, leds := newTestArray(t, 4, GRB)
	p := Pixel{R: 200, G: 100, B: 50}
	pa.SetAll(p)
	require.NoError(t, pa.WriteZero())
	require.Equal(t, make([]byte, 12), leds.frames[0])
	require.Equal(t, p, pa.GetPixel(3))
	require.NoError(t, pa.Write())
	require.Equal(t, pa.Bytes(), leds.frames[1])
}

func TestWriteWrapsError(t *testing.T) {
	pa, leds := newTestArray(t, 4, GRB)
	leds.err = errors.New("wire broken")
	err := pa.Write()
	require.Error(t, err)
	require.Contains(t, err.Error(), "wire broken")
}

func TestPixelString(t *testing.T) {
	tests := []struct {
		p    Pixel
		want string
	}{
		{Pixel{0, 0, 0, 0}, "000000"},
		{Pixel{255, 16, 1, 0}, "ff1001"},
		{Pixel{100, 50, 30, 0}, "64321e"},
		{Pixel{1, 2, 3, 4}, "01020304"},
	}
	for _, test := range tests {
		if got := test.p.String(); got != test.want {
			t.Errorf("String(%v), got: %s, want %s", test.p, got, test.want)
		}
	}
}

func TestGammaEnds(t *testing.T) {
	require.Equal(t, uint8(0), Gamma(0))
	require.Equal(t, uint8(255), Gamma(255))
}

func TestGammaMonotonic(t *testing.T) {
	for i := 1; i < 256; i++ {
		if Gamma(uint8(i)) < Gamma(uint8(i-1)) {
			t.Errorf("Gamma decreases at %d: %d < %d", i, Gamma(uint8(i)), Gamma(uint8(i-1)))
		}
	}
}

type fakeSPI struct {
	writes [][]byte
}

func (f *fakeSPI) Fd() uintptr {
	return 0
}

func (f *fakeSPI) Write(b []byte) (n int, err error) {
	c := make([]byte, len(b))
	copy(c, b)
	f.writes = append(f.writes, c)
	return len(b), nil
}

func TestLPD8806(t *testing.T) {
	spi := &fakeSPI{}
	la, err := NewLPD8806(spi, 40, 3, 0)
	require.NoError(t, err)
	require.Equal(t, 127, la.MaxPerChannel())
	// The initial reset: one zero byte per 32 pixels.
	require.Equal(t, []byte{0, 0}, spi.writes[0])

	require.NoError(t, la.Transmit([]byte{255, 0, 128}))
	sent := spi.writes[1]
	require.Len(t, sent, 122)
	require.Equal(t, []byte{0xff, 0x80, 0xc0}, sent[:3])
	for i := 3; i < 120; i++ {
		if sent[i] != 0x80 {
			t.Errorf("Byte %d, got: %02X, want 80", i, sent[i])
		}
	}
	require.Equal(t, []byte{0, 0}, sent[120:])

	require.Error(t, la.Transmit(make([]byte, 121)))
}

func TestPwmByteCount(t *testing.T) {
	tests := []struct {
		numBytes int
		freq     uint
		want     uint
	}{
		{150, 800000, 936},
		{3, 800000, 56},
		{300, 400000, 1824},
	}
	for _, test := range tests {
		if got := pwmByteCount(test.numBytes, test.freq); got != test.want {
			t.Errorf("pwmByteCount(%d, %d), got: %d, want %d", test.numBytes, test.freq, got, test.want)
		}
	}
}

func TestEncodeSymbols(t *testing.T) {
	words := make([]uint32, 8)
	for i := range words {
		words[i] = 0xFFFFFFFF
	}
	encodeSymbols(words, 0, []byte{0xFF, 0x00})
	encodeSymbols(words, 1, []byte{0x00})
	// 0xFF: eight 110 symbols fill the top 24 bits of channel 0's first word,
	// 0x00 continues with 100 symbols across the word boundary.
	require.Equal(t, uint32(0xDB6DB692), words[0])
	require.Equal(t, uint32(0x4924FFFF), words[2])
	// Channel 1 lives in the odd words.
	require.Equal(t, uint32(0x924924FF), words[1])
	require.Equal(t, uint32(0xFFFFFFFF), words[3])
}

func BenchmarkRender(b *testing.B) {
	pa, _ := newTestArray(b, 50, GRB)
	for i := 0; i < b.N; i++ {
		pa.SetOne(i%50, Pixel{R: i % 256, G: (i / 2) % 256, B: (i / 3) % 256})
		pa.Write()
	}
}
