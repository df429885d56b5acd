package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/samedayrules/wpable-server/internal/bluez"
	"github.com/samedayrules/wpable-server/internal/mainloop"
	"github.com/samedayrules/wpable-server/internal/restart"
	"github.com/samedayrules/wpable-server/internal/wlan"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish the provisioning service and run until stopped",
	Long: `Registers the GATT application, the LE advertisement and a pairing agent with
BlueZ, then serves requests until interrupted or until BlueZ rejects a
registration.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog := configureLogger(cfg, cmd.ErrOrStderr(), true)
	defer closeLog()

	// Configuration is valid; from here on errors are runtime failures
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}

	adapter, err := bluez.FindAdapter(conn, cfg.Bluetooth.Adapter)
	if err != nil {
		return err
	}
	logger.WithField("adapter", adapter).Info("Using Bluetooth adapter")

	loop := mainloop.New(logger)
	mgr := bluez.NewManager(conn, adapter, loop, logger)
	if err := mgr.PowerOn(); err != nil {
		return err
	}

	launcher, err := restart.NewCommandLauncher(cfg.Restart.Command)
	if err != nil {
		return err
	}
	c := buildApplication(cfg, launcher, logger)
	logger.WithFields(logrus.Fields{
		"interface":  cfg.WLAN.Interface,
		"address":    c.hwAddr,
		"supplicant": c.store.Path(),
		"restart":    launcher.String(),
	}).Info("WLAN service ready")

	exporter := bluez.NewExporter(conn, loop, c.app, logger)
	if err := exporter.Export(); err != nil {
		return err
	}
	defer exporter.Unexport()

	agent := bluez.NewAgent(conn, agentPath(cfg.Bluetooth.BasePath), func() { loop.Quit(nil) }, logger)
	if err := agent.Export(); err != nil {
		return err
	}
	defer agent.Unexport()
	if err := mgr.RegisterAgent(agent.Path(), cfg.Bluetooth.AgentCapability); err != nil {
		return err
	}
	defer unregister(logger, "agent", func() error { return mgr.UnregisterAgent(agent.Path()) })

	ad := bluez.NewAdvertisement(advertisementPath(cfg.Bluetooth.BasePath), cfg.Bluetooth.LocalName, []string{wlan.ServiceUUID}, logger)
	if err := ad.Export(conn); err != nil {
		return err
	}
	defer ad.Unexport(conn)

	appPath := dbus.ObjectPath(c.app.Path())
	mgr.RegisterAdvertisement(ctx, ad.Path)
	mgr.RegisterApplication(ctx, appPath)
	defer unregister(logger, "advertisement", func() error { return mgr.UnregisterAdvertisement(ad.Path) })
	defer unregister(logger, "application", func() error { return mgr.UnregisterApplication(appPath) })

	logger.WithField("name", cfg.Bluetooth.LocalName).Info("Advertising")
	return loop.Run(ctx)
}

// unregister runs a best-effort cleanup call on shutdown.
func unregister(logger *logrus.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.WithError(err).WithField("object", what).Debug("Unregister failed")
	}
}

func agentPath(base string) dbus.ObjectPath {
	return dbus.ObjectPath(strings.TrimSuffix(base, "/") + "/agent")
}

func advertisementPath(base string) dbus.ObjectPath {
	return dbus.ObjectPath(strings.TrimSuffix(base, "/") + "/advertisement0")
}
