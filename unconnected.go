package tlc5940

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Unconnected is a stand-in for an optional pin that was never wired up. It
// can substitute for any of the driver's optional input or output pins; any
// attempt to read or write it fails with ErrNotConnected.
var Unconnected gpio.PinIO = &unconnected{}

type unconnected struct{}

func (u *unconnected) String() string {
	return "UNCONNECTED"
}

func (u *unconnected) Halt() error {
	return nil
}

func (u *unconnected) Name() string {
	return "UNCONNECTED"
}

func (u *unconnected) Number() int {
	return -1
}

func (u *unconnected) Function() string {
	return ""
}

func (u *unconnected) In(gpio.Pull, gpio.Edge) error {
	return ErrNotConnected
}

func (u *unconnected) Read() gpio.Level {
	return gpio.Low
}

func (u *unconnected) WaitForEdge(time.Duration) bool {
	return false
}

func (u *unconnected) Pull() gpio.Pull {
	return gpio.PullNoChange
}

func (u *unconnected) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

func (u *unconnected) Out(gpio.Level) error {
	return ErrNotConnected
}

func (u *unconnected) PWM(gpio.Duty, physic.Frequency) error {
	return ErrNotConnected
}

var _ gpio.PinIO = &unconnected{}
