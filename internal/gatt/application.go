package gatt

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Default application paths.
const (
	DefaultRootPath ObjectPath = "/"
	DefaultBasePath ObjectPath = "/org/bluez/wpable"
)

// Application is the root of an attribute tree. It owns services in the order
// they were added; services are never reordered or removed.
type Application struct {
	path     ObjectPath
	base     ObjectPath
	services []*Service
	logger   *logrus.Logger
}

// NewApplication creates an empty application rooted at root. Services are
// placed under base as base/service0, base/service1, ...
func NewApplication(root, base ObjectPath, logger *logrus.Logger) *Application {
	if logger == nil {
		logger = logrus.New()
	}
	if root == "" {
		root = DefaultRootPath
	}
	if base == "" {
		base = DefaultBasePath
	}
	return &Application{
		path:   root,
		base:   base,
		logger: logger,
	}
}

// Path returns the application's root path.
func (a *Application) Path() ObjectPath {
	return a.path
}

// Properties returns an empty set; the application exposes no GATT interface.
func (a *Application) Properties() (Properties, error) {
	return Properties{}, nil
}

// Logger returns the logger shared by the tree.
func (a *Application) Logger() *logrus.Logger {
	return a.logger
}

// AddService appends a new service with the given UUID.
func (a *Application) AddService(uuid string, primary bool) *Service {
	svc := &Service{
		path:    childPath(a.base, "service", len(a.services)),
		uuid:    uuid,
		primary: primary,
		logger:  a.logger,
	}
	a.services = append(a.services, svc)
	return svc
}

// Services returns the application's services in registration order.
func (a *Application) Services() []*Service {
	return a.services
}

// Walk calls fn for every node of the tree depth-first, parents before
// children, starting with the application itself. Walk stops at the first
// error returned by fn and returns it.
func (a *Application) Walk(fn func(Node) error) error {
	if err := fn(a); err != nil {
		return err
	}
	for _, svc := range a.services {
		if err := fn(svc); err != nil {
			return err
		}
		for _, char := range svc.chars {
			if err := fn(char); err != nil {
				return err
			}
			for _, desc := range char.descs {
				if err := fn(desc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ManagedObjects returns the properties of every service, characteristic and
// descriptor keyed by path. The application itself is not included. If any
// node fails to report its properties, or two nodes share a path, the whole
// enumeration fails.
func (a *Application) ManagedObjects() (map[ObjectPath]Properties, error) {
	objects := make(map[ObjectPath]Properties)
	err := a.Walk(func(n Node) error {
		if n == Node(a) {
			return nil
		}
		path := n.Path()
		if _, dup := objects[path]; dup {
			return fmt.Errorf("duplicate object path %s", path)
		}
		props, err := n.Properties()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		objects[path] = props
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
