// Package bluez publishes an attribute tree, an advertisement and a pairing
// agent to the BlueZ daemon over the D-Bus system bus.
package bluez

import (
	"github.com/godbus/dbus/v5"
)

// BusName is the well-known name of the BlueZ daemon.
const BusName = "org.bluez"

// ManagerPath hosts the agent manager.
const ManagerPath dbus.ObjectPath = "/org/bluez"

// Interfaces used on the bus.
const (
	PropertiesInterface         = "org.freedesktop.DBus.Properties"
	ObjectManagerInterface      = "org.freedesktop.DBus.ObjectManager"
	IntrospectableInterface     = "org.freedesktop.DBus.Introspectable"
	AdapterInterface            = "org.bluez.Adapter1"
	DeviceInterface             = "org.bluez.Device1"
	GattManagerInterface        = "org.bluez.GattManager1"
	AdvertisingManagerInterface = "org.bluez.LEAdvertisingManager1"
	AdvertisementInterface      = "org.bluez.LEAdvertisement1"
	AgentManagerInterface       = "org.bluez.AgentManager1"
	AgentInterface              = "org.bluez.Agent1"
)

// Error names not covered by the attribute error kinds.
const (
	ErrorRejected         = "org.bluez.Error.Rejected"
	ErrorPropertyReadOnly = "org.freedesktop.DBus.Error.PropertyReadOnly"
)

// Conn is the part of *dbus.Conn the package uses.
type Conn interface {
	Export(v any, path dbus.ObjectPath, iface string) error
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// Dispatcher runs fn on the goroutine that owns the attribute tree.
type Dispatcher interface {
	Do(fn func()) error
}

// Loop is a Dispatcher that can be stopped with an error.
type Loop interface {
	Dispatcher
	Quitter
}
