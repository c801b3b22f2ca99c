package tlc5940

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// connector is the physical link between the driver and the chip chain.
//
// writeRaw clocks every byte out MSB first, byte order preserved, with the
// latch asserted exactly once around the whole payload. A pin or bus fault
// aborts the remaining transfer immediately; the latch line is then left in
// whatever state it was in, and the caller must not assume partial data
// reached the chip.
type connector interface {
	fmt.Stringer
	writeRaw(data []byte) error
}

// pinConnector bit-bangs the serial protocol over three GPIO lines.
type pinConnector struct {
	sin  gpio.PinOut // serial data
	sclk gpio.PinOut // serial clock, the chip samples on the rising edge
	xlat gpio.PinOut // latch, held low for the duration of the payload
}

func (p *pinConnector) String() string {
	return fmt.Sprintf("pins{%s, %s, %s}", p.sin, p.sclk, p.xlat)
}

func (p *pinConnector) writeRaw(data []byte) error {
	if err := p.xlat.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %w", ErrPin, err)
	}
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			if err := p.sin.Out(gpio.Level(b&(1<<uint(i)) != 0)); err != nil {
				return fmt.Errorf("%w: %w", ErrPin, err)
			}
			if err := p.sclk.Out(gpio.High); err != nil {
				return fmt.Errorf("%w: %w", ErrPin, err)
			}
			if err := p.sclk.Out(gpio.Low); err != nil {
				return fmt.Errorf("%w: %w", ErrPin, err)
			}
		}
	}
	if err := p.xlat.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: %w", ErrPin, err)
	}
	return nil
}

// spiConnector hands the whole payload to hardware SPI in one transfer; the
// port's own chip select framing doubles as the latch.
type spiConnector struct {
	c spi.Conn
}

func (s *spiConnector) String() string {
	return fmt.Sprintf("spi{%s}", s.c)
}

func (s *spiConnector) writeRaw(data []byte) error {
	if err := s.c.Tx(data, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	return nil
}

// spiSWConnector drives the latch manually around a hardware SPI transfer,
// for controllers whose automatic chip select timing does not match the
// chip's latch requirements.
type spiSWConnector struct {
	spiConnector
	xlat gpio.PinOut
}

func (s *spiSWConnector) String() string {
	return fmt.Sprintf("spics{%s, %s}", s.c, s.xlat)
}

func (s *spiSWConnector) writeRaw(data []byte) error {
	if err := s.xlat.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %w", ErrPin, err)
	}
	// A failed transfer exits with the latch still low: the bus state is
	// already unspecified and re-homing the pins is up to the caller.
	if err := s.spiConnector.writeRaw(data); err != nil {
		return err
	}
	if err := s.xlat.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: %w", ErrPin, err)
	}
	return nil
}
