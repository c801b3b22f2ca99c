// Package tlc5940 controls a Texas Instruments TLC5940 16-channel, 12-bit
// constant-current sink LED driver.
//
// The chip has no addressable registers: per-channel grayscale or dot
// correction data is shifted in over a simple serial interface and latched
// in one go. The driver keeps both channel arrays in memory and re-sends
// them whole on every update. Several chips can be daisy-chained through
// one shared link.
//
// The serial link is selected at construction time: bit-banged GPIO
// (NewPins), hardware SPI with automatic chip select (NewSPI), or hardware
// SPI with a manually driven latch pin (NewSPICS).
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/tlc5940.pdf
package tlc5940

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	numChannels       = 16
	grayscaleBits     = 12
	dotCorrectionBits = 6

	// Maximum SCLK frequency per the datasheet.
	maxFreq = 30 * physic.MegaHertz
)

// OperatingMode selects which on-chip register the next transfer programs.
type OperatingMode int

const (
	// GrayscalePWM shifts 12-bit per-channel brightness values.
	GrayscalePWM OperatingMode = iota
	// DotCorrection shifts 6-bit per-channel current calibration values.
	DotCorrection
	// EEPROM burns the dot correction defaults into the chip's EEPROM.
	// Entering it takes 22V on VPRG, which a logic-level pin cannot supply,
	// so SetMode rejects it.
	EEPROM
)

func (m OperatingMode) String() string {
	switch m {
	case GrayscalePWM:
		return "GrayscalePWM"
	case DotCorrection:
		return "DotCorrection"
	case EEPROM:
		return "EEPROM"
	default:
		return fmt.Sprintf("OperatingMode(%d)", int(m))
	}
}

// Opts holds the optional control pins. Any pin left nil is replaced by
// Unconnected and the operations needing it fail with ErrNotConnected.
type Opts struct {
	// Blank drives the chip's BLANK input. High forces all outputs off.
	Blank gpio.PinOut
	// VPRG selects grayscale (low) or dot correction (high) programming.
	// Without it the chip is stuck in whatever mode it is strapped to,
	// normally grayscale.
	VPRG gpio.PinOut
	// XErr senses the chip's open-drain XERR output, which goes low when
	// the thermal error flag or LED open detection trips. Needs an external
	// pull-up.
	XErr gpio.PinIn
}

// DefaultOpts leaves every optional pin unconnected.
var DefaultOpts = Opts{}

// Dev is a handle to one or more daisy-chained TLC5940s.
//
// Dev is not safe for concurrent use; it assumes the single-call-stack
// discipline of a bare control loop.
type Dev struct {
	c     connector
	chips int
	mode  OperatingMode

	blank gpio.PinOut
	vprg  gpio.PinOut
	xerr  gpio.PinIn

	// Per-channel 12-bit brightness, masked to the low 12 bits on store.
	grayscale [numChannels]uint16
	// Per-channel 6-bit current calibration, masked to the low 6 bits.
	dotCorrection [numChannels]uint8
}

// NewPins returns a driver that bit-bangs the chip's serial interface over
// three GPIO lines: sin (serial data), sclk (serial clock) and xlat
// (latch). This variant drives a single chip.
func NewPins(sin, sclk, xlat gpio.PinOut, opts *Opts) (*Dev, error) {
	return newDev(&pinConnector{sin: sin, sclk: sclk, xlat: xlat}, 1, opts)
}

// NewSPI returns a driver using hardware SPI, with the port's own chip
// select framing acting as the latch. chips is the number of daisy-chained
// devices sharing the port.
//
// The port is connected in mode 0 at the chip's 30MHz maximum; slower
// buses negotiate down on their own.
func NewSPI(p spi.Port, chips int, opts *Opts) (*Dev, error) {
	c, err := p.Connect(maxFreq, spi.Mode0, 8)
	if err != nil {
		return nil, wrap(err)
	}
	return newDev(&spiConnector{c: c}, chips, opts)
}

// NewSPICS is NewSPI with the latch driven manually through xlat, for SPI
// controllers whose automatic chip select cannot frame the whole payload.
func NewSPICS(p spi.Port, xlat gpio.PinOut, chips int, opts *Opts) (*Dev, error) {
	c, err := p.Connect(maxFreq, spi.Mode0, 8)
	if err != nil {
		return nil, wrap(err)
	}
	return newDev(&spiSWConnector{spiConnector: spiConnector{c: c}, xlat: xlat}, chips, opts)
}

func newDev(c connector, chips int, opts *Opts) (*Dev, error) {
	if chips < 1 {
		return nil, wrap(fmt.Errorf("invalid chip count %d", chips))
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{
		c:     c,
		chips: chips,
		blank: opts.Blank,
		vprg:  opts.VPRG,
		xerr:  opts.XErr,
	}
	if d.blank == nil {
		d.blank = Unconnected
	}
	if d.vprg == nil {
		d.vprg = Unconnected
	}
	if d.xerr == nil {
		d.xerr = Unconnected
	}
	if err := d.init(); err != nil {
		return nil, wrap(err)
	}
	return d, nil
}

// init forces a known chip state: outputs blanked and grayscale mode
// selected. Optional pins left unconnected are skipped, so construction
// never fails just because a pin was not wired.
func (d *Dev) init() error {
	if err := d.blank.Out(gpio.High); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	if err := d.vprg.Out(gpio.Low); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	d.mode = GrayscalePWM
	return nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("TLC5940{%s}", d.c)
}

// Halt blanks all outputs. It fails with ErrNotConnected when no blank pin
// was wired.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.Blank(true)
}

// SetLevel stores a grayscale level for one output. Levels above 4095 are
// truncated to their low 12 bits rather than rejected; an output outside
// 0-15 fails with ErrOutOfRange and changes nothing.
func (d *Dev) SetLevel(output int, level uint16) error {
	if output < 0 || output >= numChannels {
		return wrap(ErrOutOfRange)
	}
	d.grayscale[output] = level & 0x0fff
	return nil
}

// SetLevels stores all 16 grayscale levels, in ascending channel order.
func (d *Dev) SetLevels(levels [numChannels]uint16) error {
	for i, l := range levels {
		if err := d.SetLevel(i, l); err != nil {
			return err
		}
	}
	return nil
}

// SetCorrection stores a dot correction value for one output. Values above
// 63 are truncated to their low 6 bits; an output outside 0-15 fails with
// ErrOutOfRange and changes nothing.
func (d *Dev) SetCorrection(output int, value uint8) error {
	if output < 0 || output >= numChannels {
		return wrap(ErrOutOfRange)
	}
	d.dotCorrection[output] = value & 0x3f
	return nil
}

// SetCorrections stores all 16 dot correction values, in ascending channel
// order.
func (d *Dev) SetCorrections(values [numChannels]uint8) error {
	for i, v := range values {
		if err := d.SetCorrection(i, v); err != nil {
			return err
		}
	}
	return nil
}

// Levels returns a snapshot of the stored grayscale levels.
func (d *Dev) Levels() [numChannels]uint16 {
	return d.grayscale
}

// Corrections returns a snapshot of the stored dot correction values.
func (d *Dev) Corrections() [numChannels]uint8 {
	return d.dotCorrection
}

// Blank forces all outputs off while isBlank is true. The chip also resets
// its grayscale counter on the falling edge of BLANK.
func (d *Dev) Blank(isBlank bool) error {
	if isBlank {
		return wrap(d.blank.Out(gpio.High))
	}
	return wrap(d.blank.Out(gpio.Low))
}

// Mode returns the currently selected programming mode.
func (d *Dev) Mode() OperatingMode {
	return d.mode
}

// SetMode selects which register the next transfer programs by driving the
// VPRG pin. Selecting the mode already active is a no-op, so a driver built
// without a VPRG pin keeps working as long as it stays in grayscale mode.
func (d *Dev) SetMode(m OperatingMode) error {
	if m == d.mode {
		return nil
	}
	switch m {
	case GrayscalePWM:
		if err := d.vprg.Out(gpio.Low); err != nil {
			return wrap(err)
		}
	case DotCorrection:
		if err := d.vprg.Out(gpio.High); err != nil {
			return wrap(err)
		}
	case EEPROM:
		return wrap(errors.New("EEPROM programming needs 22V on VPRG"))
	default:
		return wrap(fmt.Errorf("unknown operating mode %d", int(m)))
	}
	d.mode = m
	return nil
}

// Update packs the stored grayscale levels and shifts them out to every
// chip in the chain, 24 bytes per device, channel 15's field first to match
// the chip's shift-in order.
//
// A failed update leaves the in-memory levels untouched, but the displayed
// chip state is indeterminate until the next successful one.
func (d *Dev) Update() error {
	if err := d.SetMode(GrayscalePWM); err != nil {
		return err
	}
	return wrap(d.c.writeRaw(d.packed(grayscaleBits)))
}

// UpdateDotCorrection packs the stored dot correction values and shifts
// them out, 12 bytes per device. It needs a wired VPRG pin to switch the
// chip into dot correction mode.
func (d *Dev) UpdateDotCorrection() error {
	if err := d.SetMode(DotCorrection); err != nil {
		return err
	}
	return wrap(d.c.writeRaw(d.packed(dotCorrectionBits)))
}

// packed concatenates the 16 per-channel fields of the given bit width into
// one MSB-first bitstream, highest channel first, splits it into bytes, and
// repeats the block once per daisy-chained chip. 16 channels at 12 or 6
// bits always land on a byte boundary.
func (d *Dev) packed(width uint) []byte {
	block := numChannels * int(width) / 8
	buf := make([]byte, 0, block*d.chips)
	mask := uint32(1)<<width - 1
	var acc uint32
	var bits uint
	for ch := numChannels - 1; ch >= 0; ch-- {
		v := uint32(d.grayscale[ch])
		if width == dotCorrectionBits {
			v = uint32(d.dotCorrection[ch])
		}
		acc = acc<<width | v&mask
		bits += width
		for bits >= 8 {
			bits -= 8
			buf = append(buf, byte(acc>>bits))
		}
	}
	for i := 1; i < d.chips; i++ {
		buf = append(buf, buf[:block]...)
	}
	return buf
}
