package main

import (
	"errors"
	"os"

	"github.com/samedayrules/wpable-server/internal/bluez"
)

// Command-level errors
var (
	// ErrBusUnavailable indicates the system bus could not be reached.
	ErrBusUnavailable = errors.New("system bus unavailable")
)

// FormatUserError adds a hint for errors users can fix themselves.
func FormatUserError(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, bluez.ErrNoAdapter):
		return msg + " (is bluetoothd running and the adapter unblocked?)"
	case errors.Is(err, ErrBusUnavailable):
		return msg + " (is dbus running?)"
	case errors.Is(err, os.ErrPermission):
		return msg + " (try running as root)"
	default:
		return msg
	}
}
