package gatt

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-ble/ble"
)

// Capability flags, as named by the BlueZ GATT API.
const (
	FlagBroadcast                 = "broadcast"
	FlagRead                      = "read"
	FlagWriteWithoutResponse      = "write-without-response"
	FlagWrite                     = "write"
	FlagNotify                    = "notify"
	FlagIndicate                  = "indicate"
	FlagAuthenticatedSignedWrites = "authenticated-signed-writes"
	FlagExtendedProperties        = "extended-properties"
	FlagReliableWrite             = "reliable-write"
	FlagWritableAuxiliaries       = "writable-auxiliaries"
	FlagEncryptRead               = "encrypt-read"
	FlagEncryptWrite              = "encrypt-write"
	FlagEncryptAuthenticatedRead  = "encrypt-authenticated-read"
	FlagEncryptAuthenticatedWrite = "encrypt-authenticated-write"
	FlagSecureRead                = "secure-read"
	FlagSecureWrite               = "secure-write"
	FlagAuthorize                 = "authorize"
)

var (
	characteristicFlags = mapset.NewSet(
		FlagBroadcast, FlagRead, FlagWriteWithoutResponse, FlagWrite,
		FlagNotify, FlagIndicate, FlagAuthenticatedSignedWrites,
		FlagExtendedProperties, FlagReliableWrite, FlagWritableAuxiliaries,
		FlagEncryptRead, FlagEncryptWrite, FlagEncryptAuthenticatedRead,
		FlagEncryptAuthenticatedWrite, FlagSecureRead, FlagSecureWrite,
		FlagAuthorize,
	)

	descriptorFlags = mapset.NewSet(
		FlagRead, FlagWrite,
		FlagEncryptRead, FlagEncryptWrite,
		FlagEncryptAuthenticatedRead, FlagEncryptAuthenticatedWrite,
		FlagSecureRead, FlagSecureWrite,
		FlagAuthorize,
	)

	readFlags = mapset.NewSet(
		FlagRead, FlagEncryptRead, FlagEncryptAuthenticatedRead, FlagSecureRead,
	)

	writeFlags = mapset.NewSet(
		FlagWrite, FlagWriteWithoutResponse, FlagAuthenticatedSignedWrites,
		FlagReliableWrite, FlagEncryptWrite, FlagEncryptAuthenticatedWrite,
		FlagSecureWrite,
	)
)

// Flags is an ordered set of capability flags. Order is kept as given so the
// bus reports flags the way they were declared.
type Flags []string

// NewFlags builds a Flags value, dropping duplicates.
func NewFlags(flags ...string) Flags {
	seen := mapset.NewThreadUnsafeSet[string]()
	result := make(Flags, 0, len(flags))
	for _, f := range flags {
		if seen.Add(f) {
			result = append(result, f)
		}
	}
	return result
}

// Has reports whether f is present.
func (fs Flags) Has(f string) bool {
	for _, v := range fs {
		if v == f {
			return true
		}
	}
	return false
}

// CanRead reports whether any read-family flag is present.
func (fs Flags) CanRead() bool {
	return fs.any(readFlags)
}

// CanWrite reports whether any write-family flag is present.
func (fs Flags) CanWrite() bool {
	return fs.any(writeFlags)
}

func (fs Flags) any(set mapset.Set[string]) bool {
	for _, f := range fs {
		if set.Contains(f) {
			return true
		}
	}
	return false
}

// String returns the flags comma-separated.
func (fs Flags) String() string {
	return strings.Join(fs, ",")
}

// Property maps the flags onto the characteristic properties bitmask carried in
// the characteristic declaration.
func (fs Flags) Property() ble.Property {
	var p ble.Property
	for _, f := range fs {
		switch f {
		case FlagBroadcast:
			p |= ble.CharBroadcast
		case FlagRead, FlagEncryptRead, FlagEncryptAuthenticatedRead, FlagSecureRead:
			p |= ble.CharRead
		case FlagWriteWithoutResponse:
			p |= ble.CharWriteNR
		case FlagWrite, FlagEncryptWrite, FlagEncryptAuthenticatedWrite, FlagSecureWrite:
			p |= ble.CharWrite
		case FlagNotify:
			p |= ble.CharNotify
		case FlagIndicate:
			p |= ble.CharIndicate
		case FlagAuthenticatedSignedWrites:
			p |= ble.CharSignedWrite
		case FlagExtendedProperties, FlagReliableWrite, FlagWritableAuxiliaries:
			p |= ble.CharExtended
		}
	}
	return p
}

func validateFlags(fs Flags, allowed mapset.Set[string], kind string) error {
	if len(fs) == 0 {
		return fmt.Errorf("%s has no flags", kind)
	}
	for _, f := range fs {
		if !allowed.Contains(f) {
			return fmt.Errorf("unknown %s flag %q", kind, f)
		}
	}
	return nil
}
