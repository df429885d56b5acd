package gatt

// Options carries the per-call options a client passes with a value operation
// (offset, mtu, device, type, link). Values are plain Go values; object paths
// are ObjectPath.
type Options map[string]any

// Write types reported in the "type" option.
const (
	WriteTypeCommand  = "command"
	WriteTypeRequest  = "request"
	WriteTypeReliable = "reliable"
)

// A Request is the context for a value operation on a node.
type Request struct {
	Path   ObjectPath // node being accessed
	Device ObjectPath // remote device, if reported
	MTU    int        // exchanged MTU, 0 if unknown
	Offset int        // requested offset; not honored (single-transfer values only)
	Link   string     // link type, if reported
}

// A ReadRequest is a read of a characteristic or descriptor value.
type ReadRequest struct {
	Request
}

// A WriteRequest is a write of a characteristic or descriptor value.
type WriteRequest struct {
	Request
	Type  string // one of the WriteType* constants, "" if unreported
	Value []byte
}

func newRequest(path ObjectPath, opts Options) Request {
	r := Request{Path: path}
	if v, ok := opts["device"].(ObjectPath); ok {
		r.Device = v
	}
	if v, ok := toInt(opts["mtu"]); ok {
		r.MTU = v
	}
	if v, ok := toInt(opts["offset"]); ok {
		r.Offset = v
	}
	if v, ok := opts["link"].(string); ok {
		r.Link = v
	}
	return r
}

func newWriteRequest(path ObjectPath, value []byte, opts Options) *WriteRequest {
	req := &WriteRequest{Request: newRequest(path, opts), Value: value}
	if v, ok := opts["type"].(string); ok {
		req.Type = v
	}
	return req
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// A ReadHandler produces the value of a node.
type ReadHandler interface {
	ServeRead(req *ReadRequest) ([]byte, error)
}

// ReadHandlerFunc is an adapter to allow the use of ordinary functions as
// ReadHandlers.
type ReadHandlerFunc func(req *ReadRequest) ([]byte, error)

// ServeRead returns f(req).
func (f ReadHandlerFunc) ServeRead(req *ReadRequest) ([]byte, error) {
	return f(req)
}

// A WriteHandler consumes a value written to a node.
type WriteHandler interface {
	ServeWrite(req *WriteRequest) error
}

// WriteHandlerFunc is an adapter to allow the use of ordinary functions as
// WriteHandlers.
type WriteHandlerFunc func(req *WriteRequest) error

// ServeWrite returns f(req).
func (f WriteHandlerFunc) ServeWrite(req *WriteRequest) error {
	return f(req)
}

// A NotifyHandler starts and stops value notifications for a characteristic.
type NotifyHandler interface {
	StartNotify(r Request) error
	StopNotify(r Request) error
}
