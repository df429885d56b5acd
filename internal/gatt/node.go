package gatt

import (
	"fmt"
	"strings"
)

// Interface names exposed by tree nodes.
const (
	ServiceInterface        = "org.bluez.GattService1"
	CharacteristicInterface = "org.bluez.GattCharacteristic1"
	DescriptorInterface     = "org.bluez.GattDescriptor1"
)

// ObjectPath is a hierarchical node identifier, unique across the tree.
type ObjectPath string

// IsChildOf reports whether p lies strictly below parent.
func (p ObjectPath) IsChildOf(parent ObjectPath) bool {
	prefix := string(parent)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(string(p), prefix) && len(p) > len(prefix)
}

func childPath(parent ObjectPath, kind string, index int) ObjectPath {
	return ObjectPath(fmt.Sprintf("%s/%s%d", strings.TrimSuffix(string(parent), "/"), kind, index))
}

// Properties maps an interface name to that interface's fields.
type Properties map[string]map[string]any

// Node is the contract shared by every tree node.
type Node interface {
	// Path returns the node's immutable object path.
	Path() ObjectPath
	// Properties returns the node's interface fields as they are now.
	Properties() (Properties, error)
}

// GetAll returns the fields n exposes for iface.
// It fails with ErrInvalidArguments if n does not implement iface.
func GetAll(n Node, iface string) (map[string]any, error) {
	props, err := n.Properties()
	if err != nil {
		return nil, err
	}
	fields, ok := props[iface]
	if !ok {
		return nil, &Error{Kind: InvalidArguments, Msg: fmt.Sprintf("%s does not implement %s", n.Path(), iface)}
	}
	return fields, nil
}
