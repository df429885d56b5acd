package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"
)

// Advertisement defaults.
const (
	DefaultAdvertisementPath dbus.ObjectPath = "/org/bluez/wpable/advertisement0"
	DefaultLocalName                         = "rpi-vctrl"
	AdvertisementPeripheral                  = "peripheral"
	AdvertisementBroadcast                   = "broadcast"
	// TestCompanyID is the Bluetooth SIG company identifier reserved for
	// testing.
	TestCompanyID uint16 = 0xFFFF
)

// Advertisement is an LE advertisement exported for the advertising manager.
// Its fields must not change after Export.
type Advertisement struct {
	Path             dbus.ObjectPath
	Type             string
	ServiceUUIDs     []string
	SolicitUUIDs     []string
	ManufacturerData map[uint16][]byte
	ServiceData      map[string][]byte
	LocalName        string
	Includes         []string

	logger *logrus.Logger
}

// NewAdvertisement returns a connectable advertisement announcing
// serviceUUIDs under localName, with test manufacturer data and the transmit
// power included.
func NewAdvertisement(path dbus.ObjectPath, localName string, serviceUUIDs []string, logger *logrus.Logger) *Advertisement {
	if logger == nil {
		logger = logrus.New()
	}
	if path == "" {
		path = DefaultAdvertisementPath
	}
	return &Advertisement{
		Path:             path,
		Type:             AdvertisementPeripheral,
		ServiceUUIDs:     serviceUUIDs,
		ManufacturerData: map[uint16][]byte{TestCompanyID: {0x70, 0x74}},
		LocalName:        localName,
		Includes:         []string{"tx-power"},
		logger:           logger,
	}
}

// Properties returns the org.bluez.LEAdvertisement1 fields. Unset optional
// fields are omitted.
func (a *Advertisement) Properties() map[string]dbus.Variant {
	props := map[string]dbus.Variant{
		"Type": dbus.MakeVariant(a.Type),
	}
	if len(a.ServiceUUIDs) > 0 {
		props["ServiceUUIDs"] = dbus.MakeVariant(a.ServiceUUIDs)
	}
	if len(a.SolicitUUIDs) > 0 {
		props["SolicitUUIDs"] = dbus.MakeVariant(a.SolicitUUIDs)
	}
	if len(a.ManufacturerData) > 0 {
		md := make(map[uint16]dbus.Variant, len(a.ManufacturerData))
		for id, data := range a.ManufacturerData {
			md[id] = dbus.MakeVariant(data)
		}
		props["ManufacturerData"] = dbus.MakeVariant(md)
	}
	if len(a.ServiceData) > 0 {
		sd := make(map[string]dbus.Variant, len(a.ServiceData))
		for uuid, data := range a.ServiceData {
			sd[uuid] = dbus.MakeVariant(data)
		}
		props["ServiceData"] = dbus.MakeVariant(sd)
	}
	if a.LocalName != "" {
		props["LocalName"] = dbus.MakeVariant(a.LocalName)
	}
	if len(a.Includes) > 0 {
		props["Includes"] = dbus.MakeVariant(a.Includes)
	}
	return props
}

// Export publishes the advertisement on conn.
func (a *Advertisement) Export(conn Conn) error {
	ad := &advertisementHandler{ad: a}
	props := &advertisementProperties{ad: a}

	if err := conn.Export(ad, a.Path, AdvertisementInterface); err != nil {
		return fmt.Errorf("failed to export advertisement: %w", err)
	}
	if err := conn.Export(props, a.Path, PropertiesInterface); err != nil {
		return fmt.Errorf("failed to export advertisement properties: %w", err)
	}

	node := &introspect.Node{
		Name: string(a.Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: PropertiesInterface, Methods: introspect.Methods(props)},
			{Name: AdvertisementInterface, Methods: introspect.Methods(ad)},
		},
	}
	return conn.Export(introspect.NewIntrospectable(node), a.Path, IntrospectableInterface)
}

// Unexport removes the advertisement from conn.
func (a *Advertisement) Unexport(conn Conn) {
	for _, iface := range []string{AdvertisementInterface, PropertiesInterface, IntrospectableInterface} {
		_ = conn.Export(nil, a.Path, iface)
	}
}

type advertisementHandler struct {
	ad *Advertisement
}

func (h *advertisementHandler) Release() *dbus.Error {
	h.ad.logger.WithField("path", h.ad.Path).Info("Advertisement released")
	return nil
}

type advertisementProperties struct {
	ad *Advertisement
}

func (h *advertisementProperties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != AdvertisementInterface {
		return nil, invalidArgs("%s does not implement %s", h.ad.Path, iface)
	}
	return h.ad.Properties(), nil
}

func (h *advertisementProperties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	all, derr := h.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := all[name]
	if !ok {
		return dbus.Variant{}, invalidArgs("%s has no property %s.%s", h.ad.Path, iface, name)
	}
	return v, nil
}

func (h *advertisementProperties) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	return dbus.NewError(ErrorPropertyReadOnly, []any{fmt.Sprintf("%s.%s is read-only", iface, name)})
}
