package main

import (
	"github.com/samedayrules/wpable-server/internal/gatt"
	"github.com/samedayrules/wpable-server/internal/restart"
	"github.com/samedayrules/wpable-server/internal/wlan"
	"github.com/samedayrules/wpable-server/internal/wpa"
	"github.com/samedayrules/wpable-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// components are the parts of the GATT application shared by serve and tree.
type components struct {
	app     *gatt.Application
	service *wlan.Service
	store   *wpa.Store
	monitor *restart.Monitor
	hwAddr  string
}

// buildApplication assembles the management service. The interface address is
// read once here; without one the zero address is reported.
func buildApplication(cfg *config.Config, launcher restart.Launcher, logger *logrus.Logger) *components {
	hwAddr, err := wlan.InterfaceAddress(cfg.WLAN.Interface)
	if err != nil {
		logger.WithError(err).Warn("Cannot read wireless interface address")
		hwAddr = wlan.ZeroAddress
	}

	monitor := restart.NewMonitor(launcher, &restart.Options{
		PollWait: cfg.Restart.PollWait,
		Timeout:  cfg.Restart.Timeout,
	}, logger)
	store := wpa.NewStore(cfg.WLAN.SupplicantPath, cfg.WLAN.Defaults)

	app := gatt.NewApplication(gatt.ObjectPath(cfg.Bluetooth.RootPath), gatt.ObjectPath(cfg.Bluetooth.BasePath), logger)
	svc := wlan.NewService(app, store, monitor, hwAddr, logger)

	return &components{
		app:     app,
		service: svc,
		store:   store,
		monitor: monitor,
		hwAddr:  hwAddr,
	}
}
