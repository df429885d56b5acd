package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/samedayrules/wpable-server/internal/gatt"
)

// toVariant wraps a tree property value, converting object paths to their
// bus type.
func toVariant(v any) dbus.Variant {
	switch v := v.(type) {
	case gatt.ObjectPath:
		return dbus.MakeVariant(dbus.ObjectPath(v))
	case []gatt.ObjectPath:
		paths := make([]dbus.ObjectPath, len(v))
		for i, p := range v {
			paths[i] = dbus.ObjectPath(p)
		}
		return dbus.MakeVariant(paths)
	default:
		return dbus.MakeVariant(v)
	}
}

func toVariants(fields map[string]any) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(fields))
	for k, v := range fields {
		out[k] = toVariant(v)
	}
	return out
}

func toInterfaces(props gatt.Properties) map[string]map[string]dbus.Variant {
	out := make(map[string]map[string]dbus.Variant, len(props))
	for iface, fields := range props {
		out[iface] = toVariants(fields)
	}
	return out
}

// toManagedObjects converts an ObjectManager result.
func toManagedObjects(objects map[gatt.ObjectPath]gatt.Properties) map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	out := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant, len(objects))
	for path, props := range objects {
		out[dbus.ObjectPath(path)] = toInterfaces(props)
	}
	return out
}

// fromOptions unwraps the options dictionary of a value operation.
func fromOptions(opts map[string]dbus.Variant) gatt.Options {
	out := make(gatt.Options, len(opts))
	for k, v := range opts {
		val := v.Value()
		if p, ok := val.(dbus.ObjectPath); ok {
			val = gatt.ObjectPath(p)
		}
		out[k] = val
	}
	return out
}

// toDBusError maps an attribute error to its bus error name. Errors without a
// kind become org.bluez.Error.Failed.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.NewError(string(gatt.KindOf(err)), []any{err.Error()})
}

func invalidArgs(format string, args ...any) *dbus.Error {
	return dbus.NewError(string(gatt.InvalidArguments), []any{fmt.Sprintf(format, args...)})
}
