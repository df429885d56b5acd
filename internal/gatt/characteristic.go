package gatt

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// A Characteristic is a GATT characteristic. Handlers and descriptors must be
// added before the tree is published.
type Characteristic struct {
	path     ObjectPath
	uuid     string
	flags    Flags
	service  *Service // owning service; not owned
	descs    []*Descriptor
	rhandler ReadHandler
	whandler WriteHandler
	nhandler NotifyHandler
	logger   *logrus.Logger
}

// Path returns the characteristic's object path.
func (c *Characteristic) Path() ObjectPath {
	return c.path
}

// UUID returns the characteristic UUID as given.
func (c *Characteristic) UUID() string {
	return c.uuid
}

// Flags returns the characteristic's capability flags.
func (c *Characteristic) Flags() Flags {
	return c.flags
}

// Service returns the owning service.
func (c *Characteristic) Service() *Service {
	return c.service
}

// Descriptors returns the characteristic's descriptors in order.
func (c *Characteristic) Descriptors() []*Descriptor {
	return c.descs
}

// AddDescriptor appends a new descriptor to the characteristic.
func (c *Characteristic) AddDescriptor(uuid string, flags Flags) *Descriptor {
	d := &Descriptor{
		path:   childPath(c.path, "desc", len(c.descs)),
		uuid:   uuid,
		flags:  NewFlags(flags...),
		char:   c,
		logger: c.logger,
	}
	c.descs = append(c.descs, d)
	return d
}

// HandleRead routes read requests to h.
func (c *Characteristic) HandleRead(h ReadHandler) {
	c.rhandler = h
}

// HandleReadFunc calls HandleRead(ReadHandlerFunc(f)).
func (c *Characteristic) HandleReadFunc(f func(req *ReadRequest) ([]byte, error)) {
	c.HandleRead(ReadHandlerFunc(f))
}

// HandleWrite routes write requests to h.
func (c *Characteristic) HandleWrite(h WriteHandler) {
	c.whandler = h
}

// HandleWriteFunc calls HandleWrite(WriteHandlerFunc(f)).
func (c *Characteristic) HandleWriteFunc(f func(req *WriteRequest) error) {
	c.HandleWrite(WriteHandlerFunc(f))
}

// HandleNotify routes StartNotify/StopNotify to h.
func (c *Characteristic) HandleNotify(h NotifyHandler) {
	c.nhandler = h
}

// Properties reports the org.bluez.GattCharacteristic1 fields.
func (c *Characteristic) Properties() (Properties, error) {
	uuid, err := NormalizeUUID(c.uuid)
	if err != nil {
		return nil, err
	}
	if err := validateFlags(c.flags, characteristicFlags, "characteristic"); err != nil {
		return nil, err
	}
	paths := make([]ObjectPath, 0, len(c.descs))
	for _, d := range c.descs {
		paths = append(paths, d.path)
	}
	return Properties{
		CharacteristicInterface: {
			"Service":     c.service.path,
			"UUID":        uuid,
			"Flags":       []string(c.flags),
			"Descriptors": paths,
		},
	}, nil
}

// ReadValue returns the characteristic value.
func (c *Characteristic) ReadValue(opts Options) ([]byte, error) {
	return serveRead(c.logger, c.path, c.flags, c.rhandler, opts)
}

// WriteValue stores a new characteristic value.
func (c *Characteristic) WriteValue(value []byte, opts Options) error {
	return serveWrite(c.logger, c.path, c.flags, c.whandler, value, opts)
}

// StartNotify subscribes the client to value notifications.
func (c *Characteristic) StartNotify() error {
	if c.nhandler == nil {
		c.logger.WithField("path", c.path).Error("Default StartNotify called, returning error")
		return &Error{Kind: NotSupported, Msg: fmt.Sprintf("notify not supported on %s", c.path)}
	}
	return c.nhandler.StartNotify(Request{Path: c.path})
}

// StopNotify cancels value notifications.
func (c *Characteristic) StopNotify() error {
	if c.nhandler == nil {
		c.logger.WithField("path", c.path).Error("Default StopNotify called, returning error")
		return &Error{Kind: NotSupported, Msg: fmt.Sprintf("notify not supported on %s", c.path)}
	}
	return c.nhandler.StopNotify(Request{Path: c.path})
}
