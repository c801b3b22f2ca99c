// tlcfade runs a breathing fade across every output of a TLC5940 chain.
// It doubles as a smoke test for all three link types.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/tlc5940"
	"github.com/coreman2200/tlc5940/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		link       = flag.String("link", "", "override link: pins | spi | spi-cs")
		chips      = flag.Int("chips", 0, "override number of daisy-chained chips")
		fps        = flag.Int("fps", 0, "override update rate")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg := config.Default()
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
	} else {
		cfg = c
	}
	if *link != "" {
		cfg.Link = config.Link(*link)
	}
	if *chips > 0 {
		cfg.Chips = *chips
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if _, err := host.Init(); err != nil {
		log.Fatal().Err(err).Msg("periph host init failed")
	}

	d, err := openDev(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("driver init failed")
	}
	log.Info().Stringer("dev", d).Str("link", string(cfg.Link)).Int("chips", cfg.Chips).Msg("driver ready")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)

	// Shift all-zero levels in before unblanking so the chain never flashes
	// whatever was left in the shift registers.
	if err := d.Update(); err != nil {
		log.Fatal().Err(err).Msg("initial update failed")
	}
	if err := d.Blank(false); err != nil && !errors.Is(err, tlc5940.ErrNotConnected) {
		log.Fatal().Err(err).Msg("unblank failed")
	}

	start := time.Now()
	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case t := <-ticker.C:
			if err := d.SetLevels(fadeFrame(t.Sub(start))); err != nil {
				log.Fatal().Err(err).Msg("set levels failed")
			}
			if err := d.Update(); err != nil {
				log.Fatal().Err(err).Msg("update failed")
			}

		case sig := <-c:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			if err := d.Halt(); err != nil && !errors.Is(err, tlc5940.ErrNotConnected) {
				log.Warn().Err(err).Msg("blank on shutdown failed")
			}
			return
		}
	}
}

// fadeFrame spreads one breathing waveform across the 16 outputs, each
// channel a sixteenth of a turn out of phase with its neighbor.
func fadeFrame(elapsed time.Duration) [16]uint16 {
	var levels [16]uint16
	base := 2 * math.Pi * elapsed.Seconds() / 3
	for i := range levels {
		phase := base + 2*math.Pi*float64(i)/16
		levels[i] = uint16((math.Sin(phase) + 1) / 2 * 4095)
	}
	return levels
}

func openDev(cfg *config.Config) (*tlc5940.Dev, error) {
	opts := &tlc5940.Opts{
		Blank: outPin(cfg.Pins.Blank),
		VPRG:  outPin(cfg.Pins.VPRG),
		XErr:  inPin(cfg.Pins.XErr),
	}
	switch cfg.Link {
	case config.LinkPins:
		return tlc5940.NewPins(outPin(cfg.Pins.Data), outPin(cfg.Pins.Clock), outPin(cfg.Pins.Latch), opts)
	case config.LinkSPI:
		p, err := spireg.Open(cfg.SPI.Port)
		if err != nil {
			return nil, err
		}
		return tlc5940.NewSPI(p, cfg.Chips, opts)
	case config.LinkSPICS:
		p, err := spireg.Open(cfg.SPI.Port)
		if err != nil {
			return nil, err
		}
		return tlc5940.NewSPICS(p, outPin(cfg.SPI.CS), cfg.Chips, opts)
	default:
		return nil, fmt.Errorf("unknown link %q", cfg.Link)
	}
}

// outPin resolves a named GPIO output; "" stays nil so the driver swaps in
// its unconnected stand-in.
func outPin(name string) gpio.PinOut {
	if name == "" {
		return nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		log.Fatal().Str("pin", name).Msg("gpio pin not found")
	}
	return p
}

func inPin(name string) gpio.PinIn {
	if name == "" {
		return nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		log.Fatal().Str("pin", name).Msg("gpio pin not found")
	}
	return p
}
