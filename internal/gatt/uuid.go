package gatt

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known descriptor UUIDs (16-bit short form)
const (
	UserDescriptionUUID = "2901"
)

// NormalizeUUID validates a GATT UUID and returns it in the lowercase form BlueZ
// reports. 16-bit ("2901", "0x2901") and 32-bit short forms are kept short;
// anything else must be a 128-bit UUID in canonical or compact form.
func NormalizeUUID(u string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(u))
	s = strings.TrimPrefix(s, "0x")

	switch len(s) {
	case 4, 8:
		if _, err := hex.DecodeString(s); err != nil {
			return "", fmt.Errorf("invalid short UUID %q", u)
		}
		return s, nil
	case 0:
		return "", fmt.Errorf("UUID cannot be empty")
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID %q: %w", u, err)
	}
	return parsed.String(), nil
}
