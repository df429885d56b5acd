package bluez

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cornelk/hashmap"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/samedayrules/wpable-server/internal/gatt"
	"github.com/sirupsen/logrus"
)

// Exporter publishes every node of an application on the bus. Each incoming
// call is handed to the dispatcher, so the tree is only touched from one
// goroutine.
type Exporter struct {
	conn     Conn
	loop     Loop
	app      *gatt.Application
	exported *hashmap.Map[dbus.ObjectPath, []string] // path -> exported interfaces
	logger   *logrus.Logger
}

// NewExporter creates an exporter for app.
func NewExporter(conn Conn, loop Loop, app *gatt.Application, logger *logrus.Logger) *Exporter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Exporter{
		conn:     conn,
		loop:     loop,
		app:      app,
		exported: hashmap.New[dbus.ObjectPath, []string](),
		logger:   logger,
	}
}

// Export validates the tree and exports all of its nodes. The application path
// additionally serves the ObjectManager interface.
func (e *Exporter) Export() error {
	if _, err := e.app.ManagedObjects(); err != nil {
		return fmt.Errorf("invalid attribute tree: %w", err)
	}

	var paths []gatt.ObjectPath
	_ = e.app.Walk(func(n gatt.Node) error {
		paths = append(paths, n.Path())
		return nil
	})

	return e.app.Walk(func(n gatt.Node) error {
		return e.exportNode(n, paths)
	})
}

// Paths returns the exported object paths, sorted.
func (e *Exporter) Paths() []dbus.ObjectPath {
	var paths []dbus.ObjectPath
	e.exported.Range(func(p dbus.ObjectPath, _ []string) bool {
		paths = append(paths, p)
		return true
	})
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

// Unexport removes everything Export published.
func (e *Exporter) Unexport() {
	for _, path := range e.Paths() {
		ifaces, _ := e.exported.Get(path)
		for _, iface := range ifaces {
			if err := e.conn.Export(nil, path, iface); err != nil {
				e.logger.WithFields(logrus.Fields{"path": path, "interface": iface}).
					WithError(err).Warn("Failed to unexport object")
			}
		}
		e.exported.Del(path)
	}
}

func (e *Exporter) exportNode(n gatt.Node, all []gatt.ObjectPath) error {
	path := dbus.ObjectPath(n.Path())

	handlers := map[string]any{
		PropertiesInterface: &propertiesHandler{e: e, node: n},
	}
	switch n := n.(type) {
	case *gatt.Application:
		handlers[ObjectManagerInterface] = &objectManagerHandler{e: e}
	case *gatt.Characteristic:
		handlers[gatt.CharacteristicInterface] = &characteristicHandler{e: e, char: n}
	case *gatt.Descriptor:
		handlers[gatt.DescriptorInterface] = &descriptorHandler{e: e, desc: n}
	case *gatt.Service:
		// GattService1 has properties only
		handlers[gatt.ServiceInterface] = nil
	}

	node := &introspect.Node{
		Name:       string(path),
		Interfaces: []introspect.Interface{introspect.IntrospectData},
		Children:   childNodes(n.Path(), all),
	}
	ifaces := make([]string, 0, len(handlers)+1)
	for _, iface := range sortedKeys(handlers) {
		h := handlers[iface]
		ni := introspect.Interface{Name: iface}
		if h != nil {
			if err := e.conn.Export(h, path, iface); err != nil {
				return fmt.Errorf("failed to export %s on %s: %w", iface, path, err)
			}
			ifaces = append(ifaces, iface)
			ni.Methods = introspect.Methods(h)
		}
		node.Interfaces = append(node.Interfaces, ni)
	}

	if err := e.conn.Export(introspect.NewIntrospectable(node), path, IntrospectableInterface); err != nil {
		return fmt.Errorf("failed to export introspection on %s: %w", path, err)
	}
	ifaces = append(ifaces, IntrospectableInterface)

	e.exported.Set(path, ifaces)
	e.logger.WithFields(logrus.Fields{"path": path, "interfaces": ifaces}).Debug("Exported object")
	return nil
}

// do runs fn on the dispatcher.
func (e *Exporter) do(fn func()) *dbus.Error {
	if err := e.loop.Do(fn); err != nil {
		return toDBusError(gatt.NewFailedError("main loop unavailable", err))
	}
	return nil
}

func (e *Exporter) fail(path gatt.ObjectPath, op string, err error) *dbus.Error {
	e.logger.WithFields(logrus.Fields{
		"path": path,
		"op":   op,
		"kind": gatt.KindOf(err),
	}).WithError(err).Warn("Bus call failed")
	return toDBusError(err)
}

// childNodes lists the names of the path segments directly below parent.
func childNodes(parent gatt.ObjectPath, all []gatt.ObjectPath) []introspect.Node {
	prefix := strings.TrimSuffix(string(parent), "/") + "/"
	names := mapset.NewThreadUnsafeSet[string]()
	for _, p := range all {
		if !p.IsChildOf(parent) {
			continue
		}
		rest := strings.TrimPrefix(string(p), prefix)
		name, _, _ := strings.Cut(rest, "/")
		names.Add(name)
	}

	sorted := names.ToSlice()
	sort.Strings(sorted)
	nodes := make([]introspect.Node, len(sorted))
	for i, name := range sorted {
		nodes[i] = introspect.Node{Name: name}
	}
	return nodes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ----------------------------
// Bus handlers
// ----------------------------

type propertiesHandler struct {
	e    *Exporter
	node gatt.Node
}

func (h *propertiesHandler) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	var fields map[string]any
	var err error
	if derr := h.e.do(func() { fields, err = gatt.GetAll(h.node, iface) }); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, h.e.fail(h.node.Path(), "GetAll", err)
	}
	return toVariants(fields), nil
}

func (h *propertiesHandler) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	all, derr := h.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := all[name]
	if !ok {
		return dbus.Variant{}, invalidArgs("%s has no property %s.%s", h.node.Path(), iface, name)
	}
	return v, nil
}

func (h *propertiesHandler) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	return dbus.NewError(ErrorPropertyReadOnly, []any{fmt.Sprintf("%s.%s is read-only", iface, name)})
}

type objectManagerHandler struct {
	e *Exporter
}

func (h *objectManagerHandler) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	h.e.logger.Info("GetManagedObjects")

	var objects map[gatt.ObjectPath]gatt.Properties
	var err error
	if derr := h.e.do(func() { objects, err = h.e.app.ManagedObjects() }); derr != nil {
		return nil, derr
	}
	if err != nil {
		h.e.logger.WithField("fatal", true).WithError(err).Error("Failed to enumerate attribute tree")
		h.e.loop.Quit(fmt.Errorf("failed to enumerate attribute tree: %w", err))
		return nil, toDBusError(err)
	}
	return toManagedObjects(objects), nil
}

type characteristicHandler struct {
	e    *Exporter
	char *gatt.Characteristic
}

func (h *characteristicHandler) ReadValue(opts map[string]dbus.Variant) ([]byte, *dbus.Error) {
	var value []byte
	var err error
	if derr := h.e.do(func() { value, err = h.char.ReadValue(fromOptions(opts)) }); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, h.e.fail(h.char.Path(), "ReadValue", err)
	}
	return value, nil
}

func (h *characteristicHandler) WriteValue(value []byte, opts map[string]dbus.Variant) *dbus.Error {
	var err error
	if derr := h.e.do(func() { err = h.char.WriteValue(value, fromOptions(opts)) }); derr != nil {
		return derr
	}
	if err != nil {
		return h.e.fail(h.char.Path(), "WriteValue", err)
	}
	return nil
}

func (h *characteristicHandler) StartNotify() *dbus.Error {
	var err error
	if derr := h.e.do(func() { err = h.char.StartNotify() }); derr != nil {
		return derr
	}
	if err != nil {
		return h.e.fail(h.char.Path(), "StartNotify", err)
	}
	return nil
}

func (h *characteristicHandler) StopNotify() *dbus.Error {
	var err error
	if derr := h.e.do(func() { err = h.char.StopNotify() }); derr != nil {
		return derr
	}
	if err != nil {
		return h.e.fail(h.char.Path(), "StopNotify", err)
	}
	return nil
}

type descriptorHandler struct {
	e    *Exporter
	desc *gatt.Descriptor
}

func (h *descriptorHandler) ReadValue(opts map[string]dbus.Variant) ([]byte, *dbus.Error) {
	var value []byte
	var err error
	if derr := h.e.do(func() { value, err = h.desc.ReadValue(fromOptions(opts)) }); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, h.e.fail(h.desc.Path(), "ReadValue", err)
	}
	return value, nil
}

func (h *descriptorHandler) WriteValue(value []byte, opts map[string]dbus.Variant) *dbus.Error {
	var err error
	if derr := h.e.do(func() { err = h.desc.WriteValue(value, fromOptions(opts)) }); derr != nil {
		return derr
	}
	if err != nil {
		return h.e.fail(h.desc.Path(), "WriteValue", err)
	}
	return nil
}
