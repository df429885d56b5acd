// Package wpa reads and writes the wpa_supplicant client configuration that
// the management service exposes over GATT.
package wpa

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/mcuadros/go-defaults"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultPath is where Raspberry Pi OS keeps the supplicant configuration.
const DefaultPath = "/etc/wpa_supplicant/wpa_supplicant.conf"

// Schema keys, in the order they are reported and written.
const (
	KeyCountry  = "country"
	KeySSID     = "ssid"
	KeyScanSSID = "scan_ssid"
	KeyPSK      = "psk"
	KeyKeyMgmt  = "key_mgmt"
)

// Schema lists the managed keys in order.
var Schema = []string{KeyCountry, KeySSID, KeyScanSSID, KeyPSK, KeyKeyMgmt}

// ErrMissingField is returned by Save when a schema key has no value.
var ErrMissingField = errors.New("missing configuration field")

// Defaults are the values a Store starts with before anything is loaded.
type Defaults struct {
	Country  string `yaml:"country" default:"US"`
	SSID     string `yaml:"ssid"`
	ScanSSID int    `yaml:"scan_ssid" default:"1"`
	PSK      string `yaml:"psk"`
	KeyMgmt  string `yaml:"key_mgmt" default:"WPA-PSK"`
}

// DefaultDefaults returns the factory defaults.
func DefaultDefaults() Defaults {
	d := Defaults{}
	defaults.SetDefaults(&d)
	return d
}

// Params is the field set, ordered as Schema for known keys.
type Params = orderedmap.OrderedMap[string, any]

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return orderedmap.New[string, any]()
}

// ParamsFromDefaults returns d as a parameter set.
func ParamsFromDefaults(d Defaults) *Params {
	p := NewParams()
	p.Set(KeyCountry, d.Country)
	p.Set(KeySSID, d.SSID)
	p.Set(KeyScanSSID, d.ScanSSID)
	p.Set(KeyPSK, d.PSK)
	p.Set(KeyKeyMgmt, d.KeyMgmt)
	return p
}

// Store holds the in-memory field set and its file.
// Store is not safe for concurrent use.
type Store struct {
	path   string
	params *Params
}

// NewStore returns a store for the file at path, initialised with d.
func NewStore(path string, d Defaults) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, params: ParamsFromDefaults(d)}
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.path
}

// Params returns the current field set. The returned map is owned by the
// store.
func (s *Store) Params() *Params {
	return s.params
}

// Replace substitutes the whole field set. Keys absent from params are gone
// until the next Load.
func (s *Store) Replace(params *Params) {
	if params == nil {
		params = NewParams()
	}
	s.params = params
}

// Load reads key=value lines from the file and overwrites the schema keys it
// finds. Other keys and lines are ignored.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, _ := strings.Cut(scanner.Text(), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !isSchemaKey(key) {
			continue
		}
		s.params.Set(key, parseValue(key, strings.TrimRightFunc(value, isSpace)))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return nil
}

// Save overwrites the file with the current field set. Every schema key must
// be present; otherwise the file is left untouched.
func (s *Store) Save() error {
	for _, key := range Schema {
		if _, ok := s.params.Get(key); !ok {
			return fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	text := Render(s.params)
	if err := writeFile(s.path, []byte(text)); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// MarshalJSON encodes the current field set as a JSON object in schema order.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.params)
}

// Render formats params with the fixed supplicant template.
func Render(params *Params) string {
	get := func(key string) string {
		v, _ := params.Get(key)
		return formatValue(v)
	}

	var b strings.Builder
	b.WriteString("ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
	b.WriteString("update_config=1\n")
	fmt.Fprintf(&b, "country=%s\n", get(KeyCountry))
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "ssid=\"%s\"\n", get(KeySSID))
	fmt.Fprintf(&b, "scan_ssid=%s\n", get(KeyScanSSID))
	fmt.Fprintf(&b, "psk=\"%s\"\n", get(KeyPSK))
	fmt.Fprintf(&b, "key_mgmt=%s\n", get(KeyKeyMgmt))
	b.WriteString("}\n")
	return b.String()
}

func isSchemaKey(key string) bool {
	for _, k := range Schema {
		if k == key {
			return true
		}
	}
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func parseValue(key, raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	if key == KeyScanSSID {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return n
		}
	}
	return raw
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

// writeFile replaces path with data through a temporary file renamed into
// place. An existing file keeps its mode; a new one is created 0600.
func writeFile(path string, data []byte) error {
	mode := fs.FileMode(0o600)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	return renameio.WriteFile(path, data, mode, renameio.IgnoreUmask())
}
