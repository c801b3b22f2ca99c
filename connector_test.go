package tlc5940

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

var errPinBroken = errors.New("pin broken")

// pinEvent is one observed write to a named pin.
type pinEvent struct {
	pin string
	l   gpio.Level
}

// testPin records every write into a shared log so tests can replay the
// interleaved waveform across several pins. failAt makes the nth and later
// writes fail, to exercise the abort paths.
type testPin struct {
	gpiotest.Pin
	log    *[]pinEvent
	failAt int
	writes int
}

func (p *testPin) Out(l gpio.Level) error {
	p.writes++
	if p.failAt > 0 && p.writes >= p.failAt {
		return errPinBroken
	}
	if p.log != nil {
		*p.log = append(*p.log, pinEvent{p.N, l})
	}
	return p.Pin.Out(l)
}

// sampleBits replays a waveform the way the chip sees it: the data line is
// latched on every rising clock edge.
func sampleBits(events []pinEvent) []gpio.Level {
	var bits []gpio.Level
	var data gpio.Level
	for _, e := range events {
		switch e.pin {
		case "SIN":
			data = e.l
		case "SCLK":
			if e.l == gpio.High {
				bits = append(bits, data)
			}
		}
	}
	return bits
}

// sampleBytes reassembles sampled bits into the bytes that were shifted in.
func sampleBytes(t *testing.T, events []pinEvent) []byte {
	t.Helper()
	bits := sampleBits(events)
	require.Zero(t, len(bits)%8, "clocked out a partial byte")
	out := make([]byte, len(bits)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

func logPins(events *[]pinEvent) (sin, sclk, xlat *testPin) {
	sin = &testPin{Pin: gpiotest.Pin{N: "SIN"}, log: events}
	sclk = &testPin{Pin: gpiotest.Pin{N: "SCLK"}, log: events}
	xlat = &testPin{Pin: gpiotest.Pin{N: "XLAT"}, log: events}
	return
}

func TestPinConnectorWaveform(t *testing.T) {
	var events []pinEvent
	sin, sclk, xlat := logPins(&events)
	c := &pinConnector{sin: sin, sclk: sclk, xlat: xlat}

	require.NoError(t, c.writeRaw([]byte{0xb2}))

	require.NotEmpty(t, events)
	assert.Equal(t, pinEvent{"XLAT", gpio.Low}, events[0], "payload must start with the latch dropping")
	assert.Equal(t, pinEvent{"XLAT", gpio.High}, events[len(events)-1], "payload must end with the latch rising")

	rising := 0
	for _, e := range events {
		if e.pin == "SCLK" && e.l == gpio.High {
			rising++
		}
	}
	assert.Equal(t, 8, rising, "one clock pulse per bit")
	assert.Equal(t, []gpio.Level{
		gpio.High, gpio.Low, gpio.High, gpio.High,
		gpio.Low, gpio.Low, gpio.High, gpio.Low,
	}, sampleBits(events))
}

func TestPinConnectorByteOrder(t *testing.T) {
	var events []pinEvent
	sin, sclk, xlat := logPins(&events)
	c := &pinConnector{sin: sin, sclk: sclk, xlat: xlat}

	payload := []byte{0x80, 0x01, 0xa5}
	require.NoError(t, c.writeRaw(payload))
	assert.Equal(t, payload, sampleBytes(t, events))
}

func TestPinConnectorPinFailure(t *testing.T) {
	var events []pinEvent
	sin, sclk, xlat := logPins(&events)
	sclk.failAt = 1
	c := &pinConnector{sin: sin, sclk: sclk, xlat: xlat}

	err := c.writeRaw([]byte{0xff})
	require.ErrorIs(t, err, ErrPin)

	// The transfer aborts on the first clock: latch down, one data bit, and
	// nothing after. The latch is not restored.
	assert.Equal(t, []pinEvent{{"XLAT", gpio.Low}, {"SIN", gpio.High}}, events)
}

func TestSPIConnector(t *testing.T) {
	p := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{{W: []byte{0xde, 0xad, 0xbe, 0xef}}},
		},
	}
	c, err := p.Connect(maxFreq, spi.Mode0, 8)
	require.NoError(t, err)

	sc := &spiConnector{c: c}
	require.NoError(t, sc.writeRaw([]byte{0xde, 0xad, 0xbe, 0xef}))
	require.NoError(t, p.Close(), "the whole payload must go out in one transfer")
}

func TestSPIConnectorTransferError(t *testing.T) {
	p := &spitest.Playback{
		Playback: conntest.Playback{DontPanic: true},
	}
	c, err := p.Connect(maxFreq, spi.Mode0, 8)
	require.NoError(t, err)

	sc := &spiConnector{c: c}
	require.ErrorIs(t, sc.writeRaw([]byte{0x01}), ErrTransfer)
}

func TestSPISWConnectorFraming(t *testing.T) {
	var events []pinEvent
	xlat := &testPin{Pin: gpiotest.Pin{N: "XLAT"}, log: &events}
	r := &spitest.Record{}
	c, err := r.Connect(maxFreq, spi.Mode0, 8)
	require.NoError(t, err)

	sw := &spiSWConnector{spiConnector: spiConnector{c: c}, xlat: xlat}
	require.NoError(t, sw.writeRaw([]byte{0xaa, 0x55}))

	assert.Equal(t, []pinEvent{{"XLAT", gpio.Low}, {"XLAT", gpio.High}}, events)
	require.Len(t, r.Ops, 1)
	assert.Equal(t, []byte{0xaa, 0x55}, r.Ops[0].W)
}

func TestSPISWConnectorSelectFailure(t *testing.T) {
	xlat := &testPin{Pin: gpiotest.Pin{N: "XLAT"}, failAt: 1}
	r := &spitest.Record{}
	c, err := r.Connect(maxFreq, spi.Mode0, 8)
	require.NoError(t, err)

	sw := &spiSWConnector{spiConnector: spiConnector{c: c}, xlat: xlat}
	require.ErrorIs(t, sw.writeRaw([]byte{0x01}), ErrPin)
	assert.Empty(t, r.Ops, "transfer must not be attempted when the latch cannot drop")
}

func TestSPISWConnectorNoRestoreOnTransferFailure(t *testing.T) {
	var events []pinEvent
	xlat := &testPin{Pin: gpiotest.Pin{N: "XLAT"}, log: &events}
	p := &spitest.Playback{
		Playback: conntest.Playback{DontPanic: true},
	}
	c, err := p.Connect(maxFreq, spi.Mode0, 8)
	require.NoError(t, err)

	sw := &spiSWConnector{spiConnector: spiConnector{c: c}, xlat: xlat}
	require.ErrorIs(t, sw.writeRaw([]byte{0x01}), ErrTransfer)

	// The latch stays low after a failed transfer; re-homing it is the
	// caller's job.
	assert.Equal(t, []pinEvent{{"XLAT", gpio.Low}}, events)
	assert.Equal(t, gpio.Low, xlat.Read())
}
