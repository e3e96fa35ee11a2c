package led

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

func TestEncodeAPA102(t *testing.T) {
	px := []frames.Pixel{{R: 1, G: 2, B: 3}, {R: 0xAA, G: 0xBB, B: 0xCC}}
	got := EncodeAPA102(nil, px, 255)
	want := []byte{
		0, 0, 0, 0,
		0xFF, 3, 2, 1,
		0xFF, 0xCC, 0xBB, 0xAA,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	assert.Equal(t, want, got)

	got = EncodeAPA102(got, px, 0)
	assert.Equal(t, byte(0xE0), got[4])
	assert.Equal(t, byte(0xE0|16), EncodeAPA102(nil, px, 128)[4])
}

func TestFrameLenEndFrame(t *testing.T) {
	assert.Equal(t, 4+4+4, FrameLen(1))
	assert.Equal(t, 4+4*8+4, FrameLen(8))
	assert.Equal(t, 4+4*128+64, FrameLen(128))
}

func TestDMAWritesEncodedFrame(t *testing.T) {
	var buf bytes.Buffer
	rec := spitest.NewRecordRaw(&buf)
	c, err := rec.Connect(8000000, spi.Mode0, 8)
	require.NoError(t, err)

	d := NewDMA(c, rec, 2)
	px := []frames.Pixel{{R: 9}, {B: 7}}
	require.NoError(t, d.Write(px, 255))
	require.Eventually(t, d.Idle, time.Second, time.Millisecond)
	assert.Equal(t, EncodeAPA102(nil, px, 255), buf.Bytes())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Write(px, 255), ErrClosed)
	assert.NoError(t, d.Close())
}

func TestDMARejectsWrongLength(t *testing.T) {
	rec := spitest.NewRecordRaw(&bytes.Buffer{})
	c, err := rec.Connect(8000000, spi.Mode0, 8)
	require.NoError(t, err)
	d := NewDMA(c, nil, 4)
	defer d.Close()
	assert.Error(t, d.Write(make([]frames.Pixel, 3), 10))
}

// gateConn blocks every transfer until release is closed.
type gateConn struct {
	release chan struct{}
	mu      sync.Mutex
	txs     int
}

func (g *gateConn) String() string { return "gate" }
func (g *gateConn) Halt() error { return nil }
func (g *gateConn) Duplex() conn.Duplex { return conn.Full }
func (g *gateConn) TxPackets([]spi.Packet) error { return nil }
func (g *gateConn) Tx(w, r []byte) error {
	<-g.release
	g.mu.Lock()
	g.txs++
	g.mu.Unlock()
	return nil
}

func TestDMASkipsWhileBusy(t *testing.T) {
	g := &gateConn{release: make(chan struct{})}
	d := NewDMA(g, nil, 1)
	px := []frames.Pixel{{R: 1}}

	require.NoError(t, d.Write(px, 1))
	assert.False(t, d.Idle())
	assert.ErrorIs(t, d.Write(px, 1), ErrBusy)
	assert.ErrorIs(t, d.Write(px, 1), ErrBusy)

	close(g.release)
	require.Eventually(t, d.Idle, time.Second, time.Millisecond)
	require.NoError(t, d.Write(px, 1))
	require.NoError(t, d.Close())

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, 2, g.txs)
}

func TestAPA102Device(t *testing.T) {
	var buf bytes.Buffer
	a, err := NewAPA102(spitest.NewRecordRaw(&buf), 3)
	require.NoError(t, err)
	buf.Reset()

	require.NoError(t, a.Write([]frames.Pixel{{R: 255}, {G: 255}, {B: 255}}, 128))
	require.GreaterOrEqual(t, buf.Len(), 4+3*4)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes()[:4])
	assert.Error(t, a.Write(make([]frames.Pixel, 2), 128))

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Write(make([]frames.Pixel, 3), 1), ErrClosed)
}

func TestNRZDevice(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewNRZ(spitest.NewRecordRaw(&buf), 2)
	require.NoError(t, err)
	buf.Reset()

	require.NoError(t, n.Write([]frames.Pixel{{R: 200}, {G: 100}}, 255))
	assert.NotZero(t, buf.Len())

	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Write(make([]frames.Pixel, 2), 1), ErrClosed)
}

// recDrawer is a display.Drawer that keeps the last image drawn.
type recDrawer struct {
	draws  int
	last   *image.NRGBA
	halted bool
}

func (r *recDrawer) String() string { return "rec" }
func (r *recDrawer) Halt() error { r.halted = true; return nil }
func (r *recDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (r *recDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, 4, 1) }
func (r *recDrawer) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	r.draws++
	r.last = image.NewNRGBA(src.Bounds())
	for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
		r.last.Set(x, 0, src.At(x, 0))
	}
	return nil
}

func TestSimThrottlesAndScales(t *testing.T) {
	rd := &recDrawer{}
	s := NewSimDrawer(rd, 4, time.Hour)
	px := []frames.Pixel{{R: 255}, {G: 255}, {B: 255}, {R: 100, G: 100, B: 100}}

	require.NoError(t, s.Write(px, 255))
	require.NoError(t, s.Write(px, 255))
	assert.Equal(t, 1, rd.draws)
	assert.Equal(t, uint64(2), s.Columns())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, rd.last.NRGBAAt(0, 0))

	s = NewSimDrawer(rd, 4, 0)
	require.NoError(t, s.Write(px, 51))
	assert.Equal(t, color.NRGBA{R: 20, G: 20, B: 20, A: 255}, rd.last.NRGBAAt(3, 0))

	require.NoError(t, s.Close())
	assert.True(t, rd.halted)
	assert.ErrorIs(t, s.Write(px, 1), ErrClosed)
}

func TestScale(t *testing.T) {
	assert.Equal(t, byte(255), scale(255, 255))
	assert.Equal(t, byte(0), scale(255, 0))
	assert.Equal(t, byte(128), scale(255, 128))
	assert.Equal(t, byte(7), scale(7, 255))
}

func TestOpenKinds(t *testing.T) {
	d, err := Open(KindSim, "", 0, 8)
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, d)
	require.NoError(t, d.Close())

	_, err = Open("ws2801", "", 0, 8)
	assert.Error(t, err)
}
