package gatt

import (
	"fmt"
)

// userDescription serves a Characteristic User Description (0x2901) value.
// The value may be rewritten only when the owning characteristic declares
// writable-auxiliaries.
type userDescription struct {
	value    []byte
	writable bool
}

func (u *userDescription) ServeRead(*ReadRequest) ([]byte, error) {
	return append([]byte(nil), u.value...), nil
}

func (u *userDescription) ServeWrite(req *WriteRequest) error {
	if !u.writable {
		return &Error{Kind: NotPermitted, Msg: fmt.Sprintf("%s is read-only", req.Path)}
	}
	u.value = append([]byte(nil), req.Value...)
	return nil
}

// AddUserDescription attaches a user description descriptor carrying label
// to c and returns it.
func AddUserDescription(c *Characteristic, label string) *Descriptor {
	d := c.AddDescriptor(UserDescriptionUUID, NewFlags(FlagRead, FlagWrite))
	u := &userDescription{
		value:    []byte(label),
		writable: c.flags.Has(FlagWritableAuxiliaries),
	}
	d.HandleRead(u)
	d.HandleWrite(u)
	return d
}
