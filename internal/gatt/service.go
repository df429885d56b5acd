package gatt

import (
	"github.com/sirupsen/logrus"
)

// A Service is a GATT service. Characteristics must be added before the tree is
// published.
type Service struct {
	path    ObjectPath
	uuid    string
	primary bool
	chars   []*Characteristic
	logger  *logrus.Logger
}

// Path returns the service's object path.
func (s *Service) Path() ObjectPath {
	return s.path
}

// UUID returns the service UUID as given.
func (s *Service) UUID() string {
	return s.uuid
}

// Primary reports whether the service is primary.
func (s *Service) Primary() bool {
	return s.primary
}

// AddCharacteristic appends a new characteristic to the service.
func (s *Service) AddCharacteristic(uuid string, flags Flags) *Characteristic {
	char := &Characteristic{
		path:    childPath(s.path, "char", len(s.chars)),
		uuid:    uuid,
		flags:   NewFlags(flags...),
		service: s,
		logger:  s.logger,
	}
	s.chars = append(s.chars, char)
	return char
}

// Characteristics returns the service's characteristics in order.
func (s *Service) Characteristics() []*Characteristic {
	return s.chars
}

// Properties reports the org.bluez.GattService1 fields.
func (s *Service) Properties() (Properties, error) {
	uuid, err := NormalizeUUID(s.uuid)
	if err != nil {
		return nil, err
	}
	paths := make([]ObjectPath, 0, len(s.chars))
	for _, c := range s.chars {
		paths = append(paths, c.path)
	}
	return Properties{
		ServiceInterface: {
			"UUID":            uuid,
			"Primary":         s.primary,
			"Characteristics": paths,
		},
	}, nil
}
