package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/samedayrules/wpable-server/internal/restart"
	"github.com/samedayrules/wpable-server/internal/wpa"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/wpable/config.yaml"

// Config holds application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level" default:"info"`
	LogFile   string          `yaml:"log_file" default:"/var/log/wpable.log"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	WLAN      WLANConfig      `yaml:"wlan"`
	Restart   RestartConfig   `yaml:"restart"`
}

// BluetoothConfig configures the peripheral as seen over BLE.
type BluetoothConfig struct {
	// Adapter selects the controller, e.g. "hci0". Empty picks the first one
	// able to serve GATT.
	Adapter         string `yaml:"adapter"`
	LocalName       string `yaml:"local_name" default:"rpi-vctrl"`
	RootPath        string `yaml:"root_path" default:"/"`
	BasePath        string `yaml:"base_path" default:"/org/bluez/wpable"`
	AgentCapability string `yaml:"agent_capability" default:"NoInputNoOutput"`
}

// WLANConfig locates the managed interface and its supplicant configuration.
type WLANConfig struct {
	Interface      string       `yaml:"interface" default:"wlan0"`
	SupplicantPath string       `yaml:"supplicant_path" default:"/etc/wpa_supplicant/wpa_supplicant.conf"`
	Defaults       wpa.Defaults `yaml:"defaults"`
}

// RestartConfig configures the network restart command and its supervision.
type RestartConfig struct {
	Command  []string      `yaml:"command"`
	PollWait time.Duration `yaml:"poll_wait" default:"1s"`
	Timeout  time.Duration `yaml:"timeout" default:"15s"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.Restart.Command = append([]string(nil), restart.DefaultCommand...)
	return cfg
}

// Load returns the defaults overlaid with the YAML file at path. A missing
// file is an error only when mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if len(c.Restart.Command) == 0 || c.Restart.Command[0] == "" {
		return errors.New("restart.command cannot be empty")
	}
	if c.Restart.PollWait <= 0 {
		return fmt.Errorf("restart.poll_wait must be positive, got %s", c.Restart.PollWait)
	}
	if c.Restart.Timeout <= 0 {
		return fmt.Errorf("restart.timeout must be positive, got %s", c.Restart.Timeout)
	}
	if c.WLAN.SupplicantPath == "" {
		return errors.New("wlan.supplicant_path cannot be empty")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, _ := c.Level()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
