package bluez

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeConn records exports and hands out fakeObjects.
type fakeConn struct {
	mu       sync.Mutex
	exports  map[dbus.ObjectPath]map[string]any
	objects  map[dbus.ObjectPath]*fakeObject
	exportFn func(path dbus.ObjectPath, iface string) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		exports: make(map[dbus.ObjectPath]map[string]any),
		objects: make(map[dbus.ObjectPath]*fakeObject),
	}
}

func (c *fakeConn) Export(v any, path dbus.ObjectPath, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exportFn != nil {
		if err := c.exportFn(path, iface); err != nil {
			return err
		}
	}
	if v == nil {
		delete(c.exports[path], iface)
		if len(c.exports[path]) == 0 {
			delete(c.exports, path)
		}
		return nil
	}
	if c.exports[path] == nil {
		c.exports[path] = make(map[string]any)
	}
	c.exports[path][iface] = v
	return nil
}

func (c *fakeConn) Object(_ string, path dbus.ObjectPath) dbus.BusObject {
	return c.object(path)
}

func (c *fakeConn) object(path dbus.ObjectPath) *fakeObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[path]
	if !ok {
		o = &fakeObject{path: path, replies: make(map[string]*dbus.Call)}
		c.objects[path] = o
	}
	return o
}

func (c *fakeConn) handler(path dbus.ObjectPath, iface string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exports[path][iface]
}

type recordedCall struct {
	Method string
	Args   []any
}

// fakeObject answers calls with canned replies; anything else succeeds with
// an empty body.
type fakeObject struct {
	dbus.BusObject

	mu      sync.Mutex
	path    dbus.ObjectPath
	calls   []recordedCall
	replies map[string]*dbus.Call
}

func (o *fakeObject) reply(method string, body []any, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies[method] = &dbus.Call{Body: body, Err: err}
}

func (o *fakeObject) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{Method: method, Args: args})
	c := &dbus.Call{Path: o.path, Method: method, Args: args}
	if r, ok := o.replies[method]; ok {
		c.Body = r.Body
		c.Err = r.Err
	}
	return c
}

func (o *fakeObject) CallWithContext(_ context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return o.Call(method, flags, args...)
}

func (o *fakeObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	c := o.Call(method, flags, args...)
	if ch == nil {
		ch = make(chan *dbus.Call, 1)
	}
	c.Done = ch
	ch <- c
	return c
}

func (o *fakeObject) Path() dbus.ObjectPath {
	return o.path
}

func (o *fakeObject) recorded() []recordedCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedCall(nil), o.calls...)
}

// directDispatcher runs functions on the caller's goroutine.
type directDispatcher struct {
	err   error
	quits *quitRecorder
}

func (d directDispatcher) Quit(err error) {
	if d.quits != nil {
		d.quits.Quit(err)
	}
}

func (d directDispatcher) Do(fn func()) error {
	if d.err != nil {
		return d.err
	}
	fn()
	return nil
}

// quitRecorder captures Quit calls.
type quitRecorder struct {
	ch chan error
}

func newQuitRecorder() *quitRecorder {
	return &quitRecorder{ch: make(chan error, 4)}
}

func (q *quitRecorder) Quit(err error) {
	q.ch <- err
}
