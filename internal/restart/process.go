package restart

import (
	"time"
)

// DefaultCommand restarts the DHCP client daemon, which re-reads the wireless
// configuration.
var DefaultCommand = []string{"systemctl", "restart", "dhcpcd"}

// Result is the outcome of a finished command.
type Result struct {
	Stdout string
	Stderr string
	Err    error // exit error, nil on success
}

// Process is a handle to a started recovery command.
type Process interface {
	// Pid returns the process id.
	Pid() int
	// Wait waits at most d for the process to exit and reports whether it has.
	Wait(d time.Duration) bool
	// Result returns the outcome; only meaningful once Wait has returned true.
	Result() Result
	// Kill forcibly terminates the process.
	Kill() error
}

// Launcher starts recovery commands without waiting for them.
type Launcher interface {
	Launch() (Process, error)
}

// LauncherFunc is an adapter to allow the use of ordinary functions as
// Launchers.
type LauncherFunc func() (Process, error)

// Launch returns f().
func (f LauncherFunc) Launch() (Process, error) {
	return f()
}
