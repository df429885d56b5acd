// Package gatt models a GATT server application as an attribute tree that can be
// published over the BlueZ D-Bus API.
//
// The tree has four node kinds:
//   - Application: the root, owning services in registration order
//   - Service: a primary or secondary GATT service owning characteristics
//   - Characteristic: a capability-flagged value owning descriptors
//   - Descriptor: auxiliary data attached to a characteristic
//
// Every node has an immutable object path derived from its parent path and its
// zero-based sibling index. Properties reports the interface fields a bus client
// sees, and Application.ManagedObjects aggregates them for the whole tree.
//
// Value operations (read, write, notify) are routed to handlers registered on a
// characteristic or descriptor. Operations without a handler answer
// ErrNotSupported; writes to a node whose flags do not allow writing answer
// ErrNotPermitted. All calls are synchronous and none of the types are safe for
// concurrent use; callers serialize access (see package mainloop).
package gatt
