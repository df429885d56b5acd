package bluez

import (
	"context"
	"fmt"

	"github.com/cornelk/hashmap"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/samedayrules/wpable-server/internal/groutine"
	"github.com/sirupsen/logrus"
)

// Agent defaults.
const (
	DefaultAgentPath dbus.ObjectPath = "/org/bluez/wpable/agent"
	// CapabilityNoInputNoOutput makes BlueZ use just-works pairing.
	CapabilityNoInputNoOutput = "NoInputNoOutput"
)

// Agent is a non-interactive pairing agent. It accepts just-works pairing and
// service authorization, marks the paired device trusted, and rejects requests
// that need a PIN or passkey from a user.
type Agent struct {
	path    dbus.ObjectPath
	conn    Conn
	release func()
	trusted *hashmap.Map[dbus.ObjectPath, struct{}]
	logger  *logrus.Logger
}

// NewAgent creates an agent at path. release is called when BlueZ releases
// the agent.
func NewAgent(conn Conn, path dbus.ObjectPath, release func(), logger *logrus.Logger) *Agent {
	if logger == nil {
		logger = logrus.New()
	}
	if path == "" {
		path = DefaultAgentPath
	}
	if release == nil {
		release = func() {}
	}
	return &Agent{
		path:    path,
		conn:    conn,
		release: release,
		trusted: hashmap.New[dbus.ObjectPath, struct{}](),
		logger:  logger,
	}
}

// Path returns the agent's object path.
func (a *Agent) Path() dbus.ObjectPath {
	return a.path
}

// Export publishes the agent on its connection.
func (a *Agent) Export() error {
	h := &agentHandler{a: a}
	if err := a.conn.Export(h, a.path, AgentInterface); err != nil {
		return fmt.Errorf("failed to export agent: %w", err)
	}
	node := &introspect.Node{
		Name: string(a.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: AgentInterface, Methods: introspect.Methods(h)},
		},
	}
	return a.conn.Export(introspect.NewIntrospectable(node), a.path, IntrospectableInterface)
}

// Unexport removes the agent from its connection.
func (a *Agent) Unexport() {
	_ = a.conn.Export(nil, a.path, AgentInterface)
	_ = a.conn.Export(nil, a.path, IntrospectableInterface)
}

// Trusted reports whether device has been marked trusted by this agent.
func (a *Agent) Trusted(device dbus.ObjectPath) bool {
	_, ok := a.trusted.Get(device)
	return ok
}

// Trust sets Device1.Trusted on device. Devices already trusted by this agent
// are skipped.
func (a *Agent) Trust(device dbus.ObjectPath) error {
	if a.Trusted(device) {
		a.logger.WithField("device", device).Debug("Device already trusted")
		return nil
	}
	obj := a.conn.Object(BusName, device)
	call := obj.Call(PropertiesInterface+".Set", 0, DeviceInterface, "Trusted", dbus.MakeVariant(true))
	if call.Err != nil {
		return fmt.Errorf("failed to trust %s: %w", device, call.Err)
	}
	a.trusted.Set(device, struct{}{})
	a.logger.WithField("device", device).Info("Device marked as trusted")
	return nil
}

// trustAsync trusts device without blocking the bus call that triggered it.
func (a *Agent) trustAsync(device dbus.ObjectPath) {
	groutine.Go(context.Background(), "agent-trust", func(context.Context) {
		if err := a.Trust(device); err != nil {
			a.logger.WithError(err).Warn("Failed to trust device")
		}
	})
}

func rejected(format string, args ...any) *dbus.Error {
	return dbus.NewError(ErrorRejected, []any{fmt.Sprintf(format, args...)})
}

type agentHandler struct {
	a *Agent
}

func (h *agentHandler) Release() *dbus.Error {
	h.a.logger.Info("Agent released")
	h.a.release()
	return nil
}

func (h *agentHandler) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	h.a.logger.WithFields(logrus.Fields{"device": device, "uuid": uuid}).Info("AuthorizeService")
	return nil
}

func (h *agentHandler) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	h.a.logger.WithField("device", device).Warn("RequestPinCode rejected")
	return "", rejected("PIN entry not supported")
}

func (h *agentHandler) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	h.a.logger.WithFields(logrus.Fields{"device": device, "pincode": pincode}).Info("DisplayPinCode")
	return nil
}

func (h *agentHandler) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	h.a.logger.WithField("device", device).Warn("RequestPasskey rejected")
	return 0, rejected("passkey entry not supported")
}

func (h *agentHandler) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	h.a.logger.WithFields(logrus.Fields{
		"device":  device,
		"passkey": fmt.Sprintf("%06d", passkey),
		"entered": entered,
	}).Info("DisplayPasskey")
	return nil
}

func (h *agentHandler) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	h.a.logger.WithFields(logrus.Fields{
		"device":  device,
		"passkey": fmt.Sprintf("%06d", passkey),
	}).Info("RequestConfirmation")
	h.a.trustAsync(device)
	return nil
}

func (h *agentHandler) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	h.a.logger.WithField("device", device).Info("RequestAuthorization")
	h.a.trustAsync(device)
	return nil
}

func (h *agentHandler) Cancel() *dbus.Error {
	h.a.logger.Info("Cancel")
	return nil
}
