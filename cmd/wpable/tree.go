package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/samedayrules/wpable-server/internal/gatt"
	"github.com/samedayrules/wpable-server/internal/restart"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the GATT application layout without touching the bus",
	Long: `Builds the GATT application from the configuration and prints its services,
characteristics and descriptors with their object paths. Nothing is
registered with BlueZ and the restart characteristic is inert.`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().Bool("json", false, "Print the layout as JSON")
}

// errOffline is returned to a restart request while the tree is built offline.
var errOffline = errors.New("restart disabled in offline mode")

func runTree(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog := configureLogger(cfg, cmd.ErrOrStderr(), false)
	defer closeLog()
	cmd.SilenceUsage = true

	offline := restart.LauncherFunc(func() (restart.Process, error) { return nil, errOffline })
	c := buildApplication(cfg, offline, logger)

	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	if asJSON {
		return writeTreeJSON(out, c.app)
	}
	return writeTree(out, c.app, isTerminal(out))
}

// treeNode is the JSON form of one tree node.
type treeNode struct {
	Path       string   `json:"path"`
	Interface  string   `json:"interface"`
	UUID       string   `json:"uuid,omitempty"`
	Primary    *bool    `json:"primary,omitempty"`
	Flags      []string `json:"flags,omitempty"`
	Properties string   `json:"properties,omitempty"`
	Label      string   `json:"label,omitempty"`
}

func collectTree(app *gatt.Application) ([]treeNode, error) {
	var nodes []treeNode
	err := app.Walk(func(n gatt.Node) error {
		switch v := n.(type) {
		case *gatt.Application:
			nodes = append(nodes, treeNode{Path: string(v.Path()), Interface: "org.freedesktop.DBus.ObjectManager"})
		case *gatt.Service:
			primary := v.Primary()
			nodes = append(nodes, treeNode{
				Path:      string(v.Path()),
				Interface: gatt.ServiceInterface,
				UUID:      v.UUID(),
				Primary:   &primary,
			})
		case *gatt.Characteristic:
			nodes = append(nodes, treeNode{
				Path:       string(v.Path()),
				Interface:  gatt.CharacteristicInterface,
				UUID:       v.UUID(),
				Flags:      v.Flags(),
				Properties: fmt.Sprintf("0x%02X", uint8(v.Flags().Property())),
			})
		case *gatt.Descriptor:
			node := treeNode{
				Path:      string(v.Path()),
				Interface: gatt.DescriptorInterface,
				UUID:      v.UUID(),
				Flags:     v.Flags(),
			}
			if v.UUID() == gatt.UserDescriptionUUID {
				label, err := v.ReadValue(gatt.Options{})
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", v.Path(), err)
				}
				node.Label = string(label)
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

func writeTreeJSON(w io.Writer, app *gatt.Application) error {
	nodes, err := collectTree(app)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(nodes)
}

func writeTree(w io.Writer, app *gatt.Application, colored bool) error {
	nodes, err := collectTree(app)
	if err != nil {
		return err
	}

	pathColor := color.New(color.FgCyan)
	uuidColor := color.New(color.FgYellow)
	labelColor := color.New(color.FgGreen)
	for _, c := range []*color.Color{pathColor, uuidColor, labelColor} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, n := range nodes {
		var line string
		switch n.Interface {
		case gatt.ServiceInterface:
			kind := "secondary"
			if n.Primary != nil && *n.Primary {
				kind = "primary"
			}
			line = fmt.Sprintf("  Service %s (%s)", uuidColor.Sprint(n.UUID), kind)
		case gatt.CharacteristicInterface:
			line = fmt.Sprintf("    Characteristic %s [%s] %s", uuidColor.Sprint(n.UUID), strings.Join(n.Flags, ","), n.Properties)
		case gatt.DescriptorInterface:
			line = fmt.Sprintf("      Descriptor %s [%s]", uuidColor.Sprint(n.UUID), strings.Join(n.Flags, ","))
			if n.Label != "" {
				line += " " + labelColor.Sprintf("%q", n.Label)
			}
		default:
			line = "Application"
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", line, pathColor.Sprint(n.Path)); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
