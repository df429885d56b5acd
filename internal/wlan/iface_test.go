package wlan

import (
	"net"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var macPattern = regexp.MustCompile(`^[0-9a-f]{2}(:[0-9a-f]{2}){5}$`)

func TestInterfaceAddressUnknown(t *testing.T) {
	_, err := InterfaceAddress("wpable-does-not-exist0")
	assert.Error(t, err)
}

func TestInterfaceAddressFormat(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)

	var name string
	for _, ifi := range ifaces {
		if len(ifi.HardwareAddr) == 6 {
			name = ifi.Name
			break
		}
	}
	if name == "" {
		t.Skip("no interface with an EUI-48 address")
	}

	addr, err := InterfaceAddress(name)
	require.NoError(t, err)
	assert.Len(t, addr, 17)
	assert.Regexp(t, macPattern, addr)
	assert.True(t, macPattern.MatchString(ZeroAddress))
}
