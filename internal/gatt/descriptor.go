package gatt

import (
	"github.com/sirupsen/logrus"
)

// A Descriptor is a GATT descriptor attached to a characteristic.
type Descriptor struct {
	path     ObjectPath
	uuid     string
	flags    Flags
	char     *Characteristic // owning characteristic; not owned
	rhandler ReadHandler
	whandler WriteHandler
	logger   *logrus.Logger
}

func (d *Descriptor) Path() ObjectPath {
	return d.path
}

func (d *Descriptor) UUID() string {
	return d.uuid
}

func (d *Descriptor) Flags() Flags {
	return d.flags
}

// Characteristic returns the owning characteristic.
func (d *Descriptor) Characteristic() *Characteristic {
	return d.char
}

// HandleRead routes read requests to h.
func (d *Descriptor) HandleRead(h ReadHandler) {
	d.rhandler = h
}

// HandleReadFunc calls HandleRead(ReadHandlerFunc(f)).
func (d *Descriptor) HandleReadFunc(f func(req *ReadRequest) ([]byte, error)) {
	d.HandleRead(ReadHandlerFunc(f))
}

// HandleWrite routes write requests to h.
func (d *Descriptor) HandleWrite(h WriteHandler) {
	d.whandler = h
}

// HandleWriteFunc calls HandleWrite(WriteHandlerFunc(f)).
func (d *Descriptor) HandleWriteFunc(f func(req *WriteRequest) error) {
	d.HandleWrite(WriteHandlerFunc(f))
}

// Properties reports the org.bluez.GattDescriptor1 fields.
func (d *Descriptor) Properties() (Properties, error) {
	uuid, err := NormalizeUUID(d.uuid)
	if err != nil {
		return nil, err
	}
	if err := validateFlags(d.flags, descriptorFlags, "descriptor"); err != nil {
		return nil, err
	}
	return Properties{
		DescriptorInterface: {
			"Characteristic": d.char.path,
			"UUID":           uuid,
			"Flags":          []string(d.flags),
		},
	}, nil
}

func (d *Descriptor) ReadValue(opts Options) ([]byte, error) {
	return serveRead(d.logger, d.path, d.flags, d.rhandler, opts)
}

func (d *Descriptor) WriteValue(value []byte, opts Options) error {
	return serveWrite(d.logger, d.path, d.flags, d.whandler, value, opts)
}
