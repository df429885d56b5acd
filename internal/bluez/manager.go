package bluez

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/samedayrules/wpable-server/internal/groutine"
	"github.com/sirupsen/logrus"
)

// ErrNoAdapter is returned when no adapter offers GATT server support.
var ErrNoAdapter = errors.New("GattManager1 interface not found")

// Quitter stops the main loop.
type Quitter interface {
	Quit(err error)
}

// Manager talks to the BlueZ managers of one adapter.
type Manager struct {
	conn    Conn
	adapter dbus.ObjectPath
	loop    Quitter
	logger  *logrus.Logger
}

// FindAdapter returns the first adapter exposing GattManager1. When name is
// set (for example "hci0") only that adapter is considered.
func FindAdapter(conn Conn, name string) (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(BusName, "/").Call(ObjectManagerInterface+".GetManagedObjects", 0)
	if call.Err != nil {
		return "", fmt.Errorf("failed to list BlueZ objects: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return "", fmt.Errorf("failed to decode BlueZ objects: %w", err)
	}

	paths := make([]dbus.ObjectPath, 0, len(objects))
	for p := range objects {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	for _, p := range paths {
		if _, ok := objects[p][GattManagerInterface]; !ok {
			continue
		}
		if name != "" && path.Base(string(p)) != name {
			continue
		}
		return p, nil
	}
	if name != "" {
		return "", fmt.Errorf("%w on adapter %s", ErrNoAdapter, name)
	}
	return "", ErrNoAdapter
}

// NewManager returns a manager for adapter. Asynchronous registration
// failures quit loop.
func NewManager(conn Conn, adapter dbus.ObjectPath, loop Quitter, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{conn: conn, adapter: adapter, loop: loop, logger: logger}
}

// Adapter returns the adapter path.
func (m *Manager) Adapter() dbus.ObjectPath {
	return m.adapter
}

// PowerOn switches the adapter on.
func (m *Manager) PowerOn() error {
	call := m.conn.Object(BusName, m.adapter).Call(PropertiesInterface+".Set", 0,
		AdapterInterface, "Powered", dbus.MakeVariant(true))
	if call.Err != nil {
		return fmt.Errorf("failed to power on %s: %w", m.adapter, call.Err)
	}
	m.logger.WithField("adapter", m.adapter).Info("Adapter powered on")
	return nil
}

// RegisterAgent registers the agent at agentPath and makes it the default.
func (m *Manager) RegisterAgent(agentPath dbus.ObjectPath, capability string) error {
	obj := m.conn.Object(BusName, ManagerPath)
	if call := obj.Call(AgentManagerInterface+".RegisterAgent", 0, agentPath, capability); call.Err != nil {
		return fmt.Errorf("failed to register agent: %w", call.Err)
	}
	if call := obj.Call(AgentManagerInterface+".RequestDefaultAgent", 0, agentPath); call.Err != nil {
		return fmt.Errorf("failed to set default agent: %w", call.Err)
	}
	m.logger.WithFields(logrus.Fields{"path": agentPath, "capability": capability}).Info("Agent registered")
	return nil
}

// UnregisterAgent removes the agent registration.
func (m *Manager) UnregisterAgent(agentPath dbus.ObjectPath) error {
	call := m.conn.Object(BusName, ManagerPath).Call(AgentManagerInterface+".UnregisterAgent", 0, agentPath)
	return call.Err
}

// RegisterAdvertisement asks the advertising manager to start advertising.
// The reply is handled in the background.
func (m *Manager) RegisterAdvertisement(ctx context.Context, adPath dbus.ObjectPath) {
	m.registerAsync(ctx, AdvertisingManagerInterface+".RegisterAdvertisement", adPath,
		"Advertisement registered", "Failed to register advertisement")
}

// UnregisterAdvertisement stops advertising.
func (m *Manager) UnregisterAdvertisement(adPath dbus.ObjectPath) error {
	call := m.conn.Object(BusName, m.adapter).Call(AdvertisingManagerInterface+".UnregisterAdvertisement", 0, adPath)
	return call.Err
}

// RegisterApplication asks the GATT manager to publish the application.
// The reply is handled in the background.
func (m *Manager) RegisterApplication(ctx context.Context, appPath dbus.ObjectPath) {
	m.logger.Info("Registering GATT application")
	m.registerAsync(ctx, GattManagerInterface+".RegisterApplication", appPath,
		"GATT application registered", "Failed to register application")
}

// UnregisterApplication withdraws the application.
func (m *Manager) UnregisterApplication(appPath dbus.ObjectPath) error {
	call := m.conn.Object(BusName, m.adapter).Call(GattManagerInterface+".UnregisterApplication", 0, appPath)
	return call.Err
}

// registerAsync issues method with an empty options dictionary. Success is
// logged; failure is logged as fatal and quits the loop.
func (m *Manager) registerAsync(ctx context.Context, method string, target dbus.ObjectPath, okMsg, failMsg string) {
	obj := m.conn.Object(BusName, m.adapter)
	call := obj.Go(method, 0, make(chan *dbus.Call, 1), target, map[string]dbus.Variant{})

	groutine.Go(ctx, "bluez-register", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case reply := <-call.Done:
			log := m.logger.WithFields(logrus.Fields{"adapter": m.adapter, "path": target})
			if reply.Err != nil {
				log.WithField("fatal", true).WithError(reply.Err).Error(failMsg)
				m.loop.Quit(fmt.Errorf("%s: %w", failMsg, reply.Err))
				return
			}
			log.Info(okMsg)
		}
	})
}
