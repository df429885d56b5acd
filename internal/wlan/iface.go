package wlan

import (
	"fmt"
	"net"
	"strings"
)

// DefaultInterface is the wireless interface managed by default.
const DefaultInterface = "wlan0"

// ZeroAddress is reported when the interface has no hardware address.
const ZeroAddress = "00:00:00:00:00:00"

// InterfaceAddress returns the hardware address of the named interface as
// lower-case colon-separated hex.
func InterfaceAddress(name string) (string, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	if len(ifi.HardwareAddr) == 0 {
		return "", fmt.Errorf("interface %s has no hardware address", name)
	}
	return strings.ToLower(ifi.HardwareAddr.String()), nil
}
