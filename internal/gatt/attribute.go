package gatt

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Attribute is the value-operation contract shared by characteristics and
// descriptors.
type Attribute interface {
	Node
	UUID() string
	Flags() Flags
	ReadValue(opts Options) ([]byte, error)
	WriteValue(value []byte, opts Options) error
}

func serveRead(logger *logrus.Logger, path ObjectPath, flags Flags, h ReadHandler, opts Options) ([]byte, error) {
	log := logger.WithField("path", path)
	if h == nil {
		log.Error("Default ReadValue called, returning error")
		return nil, &Error{Kind: NotSupported, Msg: fmt.Sprintf("read not supported on %s", path)}
	}
	if !flags.CanRead() {
		return nil, &Error{Kind: NotPermitted, Msg: fmt.Sprintf("%s is not readable", path)}
	}
	req := &ReadRequest{Request: newRequest(path, opts)}
	if req.Offset != 0 {
		log.WithField("offset", req.Offset).Warn("Read offset ignored")
	}
	return h.ServeRead(req)
}

func serveWrite(logger *logrus.Logger, path ObjectPath, flags Flags, h WriteHandler, value []byte, opts Options) error {
	log := logger.WithField("path", path)
	if h == nil {
		log.Error("Default WriteValue called, returning error")
		return &Error{Kind: NotSupported, Msg: fmt.Sprintf("write not supported on %s", path)}
	}
	if !flags.CanWrite() {
		return &Error{Kind: NotPermitted, Msg: fmt.Sprintf("%s is not writable", path)}
	}
	req := newWriteRequest(path, value, opts)
	if req.Offset != 0 {
		log.WithField("offset", req.Offset).Warn("Write offset ignored")
	}
	return h.ServeWrite(req)
}
