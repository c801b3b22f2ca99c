// Package config holds the YAML configuration for the demo commands.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Link selects how the driver talks to the chip chain.
type Link string

const (
	// LinkPins bit-bangs the serial protocol over plain GPIO.
	LinkPins Link = "pins"
	// LinkSPI uses hardware SPI with automatic chip select.
	LinkSPI Link = "spi"
	// LinkSPICS uses hardware SPI with a manually driven latch pin.
	LinkSPICS Link = "spi-cs"
)

// Pins names GPIO lines the way gpioreg resolves them, e.g. "GPIO17".
type Pins struct {
	Data  string `yaml:"data,omitempty"`
	Clock string `yaml:"clock,omitempty"`
	Latch string `yaml:"latch,omitempty"`
	Blank string `yaml:"blank,omitempty"`
	VPRG  string `yaml:"vprg,omitempty"`
	XErr  string `yaml:"xerr,omitempty"`
}

type SPI struct {
	Port string `yaml:"port,omitempty"` // e.g. /dev/spidev0.0; "" picks the first port
	CS   string `yaml:"cs,omitempty"`   // latch pin, spi-cs link only
}

type Config struct {
	Link  Link `yaml:"link"`
	Chips int  `yaml:"chips"`
	FPS   int  `yaml:"fps"`
	Pins  Pins `yaml:"pins,omitempty"`
	SPI   SPI  `yaml:"spi,omitempty"`
}

// Default is the configuration used when no config file is present: one
// chip on the first hardware SPI port.
func Default() *Config {
	return &Config{Link: LinkSPI, Chips: 1, FPS: 30}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks the cross-field requirements the YAML schema cannot
// express.
func (c *Config) Validate() error {
	if c.Chips < 1 {
		return fmt.Errorf("config: chips must be >= 1, got %d", c.Chips)
	}
	if c.FPS < 1 {
		return fmt.Errorf("config: fps must be >= 1, got %d", c.FPS)
	}
	switch c.Link {
	case LinkPins:
		if c.Pins.Data == "" || c.Pins.Clock == "" || c.Pins.Latch == "" {
			return fmt.Errorf("config: link %q needs pins.data, pins.clock and pins.latch", c.Link)
		}
	case LinkSPI:
	case LinkSPICS:
		if c.SPI.CS == "" {
			return fmt.Errorf("config: link %q needs spi.cs", c.Link)
		}
	default:
		return fmt.Errorf("config: unknown link %q", c.Link)
	}
	return nil
}
