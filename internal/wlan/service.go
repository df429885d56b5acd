// Package wlan implements the WLAN management GATT service: reading and
// replacing the wpa_supplicant configuration, restarting the network service
// and reporting the wireless interface address.
package wlan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/samedayrules/wpable-server/internal/gatt"
	"github.com/samedayrules/wpable-server/internal/restart"
	"github.com/samedayrules/wpable-server/internal/wpa"
	"github.com/sirupsen/logrus"
)

// UUIDs of the management service and its characteristics.
const (
	ServiceUUID   = "12634d89-d598-4874-8e86-7d042ee07ba7"
	ConfigureUUID = "4116f8d2-9f66-4f58-a53d-fc7440e7c14e"
	RestartUUID   = "9c7dbce8-de5f-4168-89dd-74f04f4e5842"
	MACAddrUUID   = "16637984-be04-49b8-be43-86cf4efda929"
)

// User description labels.
const (
	ConfigureLabel = "Configure WLAN interface {read:cur_config, write:new_config}"
	RestartLabel   = "Restart the WLAN interface {read:state, write:state}"
	MACAddrLabel   = "Retrieve the wireless interface MAC address {read:addr}"
)

// RestartCommand is the only value a client may write to the restart
// characteristic to trigger a restart.
const RestartCommand = string(restart.Restarting)

// Errors returned to clients for malformed writes.
var (
	ErrNotObject      = errors.New("configuration must be a JSON object")
	ErrInvalidCommand = errors.New("restart state must be UTF-8 text")
)

// ConfigStore is the persisted supplicant configuration. Its JSON form is the
// current field set.
type ConfigStore interface {
	json.Marshaler
	Load() error
	Save() error
	Replace(params *wpa.Params)
	Params() *wpa.Params
}

// RestartMonitor supervises the network restart command.
type RestartMonitor interface {
	Current() restart.State
	Poll() restart.State
	RequestRestart() error
}

// Service is the WLAN management service attached to an application.
type Service struct {
	gatt    *gatt.Service
	store   ConfigStore
	monitor RestartMonitor
	hwAddr  string
	logger  *logrus.Logger

	configure *gatt.Characteristic
	restart   *gatt.Characteristic
	macAddr   *gatt.Characteristic
}

// NewService adds the management service to app. hwAddr is the interface
// address reported by the MAC characteristic; it is fixed for the lifetime of
// the service.
func NewService(app *gatt.Application, store ConfigStore, monitor RestartMonitor, hwAddr string, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Service{
		gatt:    app.AddService(ServiceUUID, true),
		store:   store,
		monitor: monitor,
		hwAddr:  hwAddr,
		logger:  logger,
	}

	rw := gatt.NewFlags(gatt.FlagRead, gatt.FlagWrite)

	s.configure = s.gatt.AddCharacteristic(ConfigureUUID, rw)
	s.configure.HandleReadFunc(s.readConfig)
	s.configure.HandleWriteFunc(s.writeConfig)
	gatt.AddUserDescription(s.configure, ConfigureLabel)

	s.restart = s.gatt.AddCharacteristic(RestartUUID, rw)
	s.restart.HandleReadFunc(s.readRestart)
	s.restart.HandleWriteFunc(s.writeRestart)
	gatt.AddUserDescription(s.restart, RestartLabel)

	s.macAddr = s.gatt.AddCharacteristic(MACAddrUUID, gatt.NewFlags(gatt.FlagRead))
	s.macAddr.HandleReadFunc(s.readMACAddr)
	gatt.AddUserDescription(s.macAddr, MACAddrLabel)

	return s
}

// GATT returns the underlying GATT service.
func (s *Service) GATT() *gatt.Service {
	return s.gatt
}

// Configure returns the configuration characteristic.
func (s *Service) Configure() *gatt.Characteristic {
	return s.configure
}

// Restart returns the restart characteristic.
func (s *Service) Restart() *gatt.Characteristic {
	return s.restart
}

// MACAddr returns the interface address characteristic.
func (s *Service) MACAddr() *gatt.Characteristic {
	return s.macAddr
}

func (s *Service) readConfig(req *gatt.ReadRequest) ([]byte, error) {
	s.logger.WithField("device", req.Device).Info("Reading current WLAN configuration")

	if err := s.store.Load(); err != nil {
		s.logger.WithError(err).Error("Failed to load WLAN configuration")
		return nil, gatt.NewFailedError("failed to load configuration", err)
	}

	data, err := json.Marshal(s.store)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode WLAN configuration")
		return nil, gatt.NewFailedError("failed to encode configuration", err)
	}
	s.logger.WithField("config", redact(s.store.Params())).Debug("WLAN configuration read")
	return data, nil
}

func (s *Service) writeConfig(req *gatt.WriteRequest) error {
	s.logger.WithField("device", req.Device).Info("Writing new WLAN configuration")

	if err := s.applyConfig(req.Value); err != nil {
		s.logger.WithError(err).Error("Failed to write WLAN configuration")
		return gatt.NewFailedError("failed to write configuration", err)
	}
	return nil
}

// applyConfig replaces the whole configuration with the JSON object in value
// and saves it. Fields omitted by the client are not merged from the file.
func (s *Service) applyConfig(value []byte) error {
	if err := s.store.Load(); err != nil {
		return err
	}

	if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrNotObject
	}

	params := wpa.NewParams()
	if err := json.Unmarshal(value, params); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s.logger.WithField("config", redact(params)).Debug("WLAN configuration received")

	s.store.Replace(params)
	return s.store.Save()
}

func (s *Service) readRestart(*gatt.ReadRequest) ([]byte, error) {
	state := s.monitor.Poll()
	s.logger.WithField("state", state).Info("Reading restart state")
	return []byte(state), nil
}

func (s *Service) writeRestart(req *gatt.WriteRequest) error {
	if !utf8.Valid(req.Value) {
		s.logger.WithField("value", fmt.Sprintf("%x", req.Value)).Error("Failed to decode restart state")
		return gatt.NewFailedError("failed to decode restart state", ErrInvalidCommand)
	}

	cmd := string(req.Value)
	log := s.logger.WithField("command", cmd)
	log.Info("Writing restart state")

	if state := s.monitor.Current(); state != restart.Idle {
		log.WithField("state", state).Debug("Restart in progress, write ignored")
		return nil
	}
	if cmd != RestartCommand {
		log.Info("Unknown restart state")
		return nil
	}

	if err := s.monitor.RequestRestart(); err != nil {
		log.WithError(err).Error("Failed to restart WLAN interface")
		return gatt.NewFailedError("failed to restart", err)
	}
	return nil
}

func (s *Service) readMACAddr(*gatt.ReadRequest) ([]byte, error) {
	s.logger.WithField("address", s.hwAddr).Info("Reading WLAN interface MAC address")
	return []byte(s.hwAddr), nil
}

// redact hides the passphrase in logged configurations.
func redact(params *wpa.Params) map[string]any {
	out := make(map[string]any, params.Len())
	for pair := params.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == wpa.KeyPSK {
			out[pair.Key] = "<redacted>"
			continue
		}
		out[pair.Key] = pair.Value
	}
	return out
}
