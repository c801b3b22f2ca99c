package tlc5940

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation targets an optional pin
	// that was left unwired (see Unconnected). Recoverable by not calling
	// the operation that needs the pin.
	ErrNotConnected = errors.New("pin is not connected")

	// ErrOutOfRange is returned when a channel index outside 0-15 is
	// requested. Channel state is left unmodified.
	ErrOutOfRange = errors.New("channel index out of range")

	// ErrPin wraps a GPIO write that failed during a bit-banged transfer or
	// while driving the latch manually. The remainder of the transfer is
	// aborted.
	ErrPin = errors.New("pin write failed")

	// ErrTransfer wraps a failure reported by the SPI layer. The chip state
	// after a failed transfer is indeterminate until the next successful
	// update.
	ErrTransfer = errors.New("serial transfer failed")
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tlc5940: %w", err)
}
