package bluez

import (
	"errors"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/samedayrules/wpable-server/internal/gatt"
	"github.com/samedayrules/wpable-server/internal/testutils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type valueReader interface {
	ReadValue(opts map[string]dbus.Variant) ([]byte, *dbus.Error)
}

type valueWriter interface {
	WriteValue(value []byte, opts map[string]dbus.Variant) *dbus.Error
}

type notifier interface {
	StartNotify() *dbus.Error
	StopNotify() *dbus.Error
}

type propertyGetter interface {
	GetAll(iface string) (map[string]dbus.Variant, *dbus.Error)
	Get(iface, name string) (dbus.Variant, *dbus.Error)
	Set(iface, name string, v dbus.Variant) *dbus.Error
}

type managedObjects interface {
	GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error)
}

// ExporterTestSuite exports a small tree onto a fake connection and drives the
// exported handlers the way the bus would.
type ExporterTestSuite struct {
	suite.Suite

	conn     *fakeConn
	app      *gatt.Application
	exporter *Exporter
	value    []byte
}

func (s *ExporterTestSuite) SetupTest() {
	logger, _ := testutils.NewTestLogger()
	s.conn = newFakeConn()
	s.app = gatt.NewApplication("/", "/org/bluez/wpable", logger)
	s.value = []byte("hello")

	svc := s.app.AddService("12634d89-d598-4874-8e86-7d042ee07ba7", true)
	c := svc.AddCharacteristic("4116f8d2-9f66-4f58-a53d-fc7440e7c14e", gatt.NewFlags(gatt.FlagRead, gatt.FlagWrite))
	c.HandleReadFunc(func(*gatt.ReadRequest) ([]byte, error) { return s.value, nil })
	c.HandleWriteFunc(func(req *gatt.WriteRequest) error {
		if len(req.Value) == 0 {
			return gatt.NewFailedError("empty value", nil)
		}
		s.value = req.Value
		return nil
	})
	gatt.AddUserDescription(c, "Configure")

	s.exporter = NewExporter(s.conn, directDispatcher{}, s.app, logger)
	s.Require().NoError(s.exporter.Export())
}

const (
	svcPath  = dbus.ObjectPath("/org/bluez/wpable/service0")
	charPath = dbus.ObjectPath("/org/bluez/wpable/service0/char0")
	descPath = dbus.ObjectPath("/org/bluez/wpable/service0/char0/desc0")
)

func (s *ExporterTestSuite) TestExportedPaths() {
	s.Equal([]dbus.ObjectPath{"/", svcPath, charPath, descPath}, s.exporter.Paths())

	s.Implements((*managedObjects)(nil), s.conn.handler("/", ObjectManagerInterface))
	s.Implements((*propertyGetter)(nil), s.conn.handler(svcPath, PropertiesInterface))
	s.Implements((*valueReader)(nil), s.conn.handler(charPath, gatt.CharacteristicInterface))
	s.Implements((*notifier)(nil), s.conn.handler(charPath, gatt.CharacteristicInterface))
	s.Implements((*valueWriter)(nil), s.conn.handler(descPath, gatt.DescriptorInterface))
	s.Nil(s.conn.handler(svcPath, ObjectManagerInterface))
	for _, p := range s.exporter.Paths() {
		s.NotNil(s.conn.handler(p, IntrospectableInterface), p)
	}
}

func (s *ExporterTestSuite) TestGetManagedObjects() {
	om := s.conn.handler("/", ObjectManagerInterface).(managedObjects)

	objects, derr := om.GetManagedObjects()
	s.Require().Nil(derr)
	s.Len(objects, 3, "the application itself is not a managed object")

	char := objects[charPath][gatt.CharacteristicInterface]
	s.Equal(svcPath, char["Service"].Value())
	s.Equal([]string{"read", "write"}, char["Flags"].Value())
	s.Equal([]dbus.ObjectPath{descPath}, char["Descriptors"].Value())

	svc := objects[svcPath][gatt.ServiceInterface]
	s.Equal(true, svc["Primary"].Value())
	s.Equal([]dbus.ObjectPath{charPath}, svc["Characteristics"].Value())
}

func (s *ExporterTestSuite) TestGetManagedObjectsFailureQuitsLoop() {
	logger, hook := testutils.NewTestLogger()
	conn := newFakeConn()
	quits := newQuitRecorder()
	s.Require().NoError(NewExporter(conn, directDispatcher{quits: quits}, s.app, logger).Export())

	// The tree stops enumerating once a malformed node is attached.
	s.app.AddService("not-a-uuid", true)

	objects, derr := conn.handler("/", ObjectManagerInterface).(managedObjects).GetManagedObjects()
	s.Nil(objects)
	s.Require().NotNil(derr)

	select {
	case err := <-quits.ch:
		s.ErrorContains(err, "failed to enumerate attribute tree")
	default:
		s.Fail("loop was not asked to quit")
	}
	s.True(testutils.HasEntry(hook, logrus.ErrorLevel, "Failed to enumerate attribute tree"))
}

func (s *ExporterTestSuite) TestProperties() {
	props := s.conn.handler(descPath, PropertiesInterface).(propertyGetter)

	all, derr := props.GetAll(gatt.DescriptorInterface)
	s.Require().Nil(derr)
	s.Equal("2901", all["UUID"].Value())
	s.Equal(charPath, all["Characteristic"].Value())

	v, derr := props.Get(gatt.DescriptorInterface, "UUID")
	s.Require().Nil(derr)
	s.Equal("2901", v.Value())

	_, derr = props.GetAll(gatt.ServiceInterface)
	s.Require().NotNil(derr)
	s.Equal("org.freedesktop.DBus.Error.InvalidArgs", derr.Name)

	_, derr = props.Get(gatt.DescriptorInterface, "Value")
	s.Require().NotNil(derr)
	s.Equal("org.freedesktop.DBus.Error.InvalidArgs", derr.Name)

	derr = props.Set(gatt.DescriptorInterface, "UUID", dbus.MakeVariant("2902"))
	s.Require().NotNil(derr)
	s.Equal(ErrorPropertyReadOnly, derr.Name)

	appProps := s.conn.handler("/", PropertiesInterface).(propertyGetter)
	_, derr = appProps.GetAll(gatt.ServiceInterface)
	s.Require().NotNil(derr)
	s.Equal("org.freedesktop.DBus.Error.InvalidArgs", derr.Name)
}

func (s *ExporterTestSuite) TestValueOperations() {
	char := s.conn.handler(charPath, gatt.CharacteristicInterface)

	value, derr := char.(valueReader).ReadValue(map[string]dbus.Variant{"offset": dbus.MakeVariant(uint16(0))})
	s.Require().Nil(derr)
	s.Equal([]byte("hello"), value)

	s.Require().Nil(char.(valueWriter).WriteValue([]byte("bye"), map[string]dbus.Variant{"type": dbus.MakeVariant("request")}))
	s.Equal([]byte("bye"), s.value)

	derr = char.(valueWriter).WriteValue(nil, nil)
	s.Require().NotNil(derr)
	s.Equal("org.bluez.Error.Failed", derr.Name)

	derr = char.(notifier).StartNotify()
	s.Require().NotNil(derr)
	s.Equal("org.bluez.Error.NotSupported", derr.Name)
	s.Equal("org.bluez.Error.NotSupported", char.(notifier).StopNotify().Name)

	desc := s.conn.handler(descPath, gatt.DescriptorInterface)
	label, derr := desc.(valueReader).ReadValue(nil)
	s.Require().Nil(derr)
	s.Equal("Configure", string(label))

	derr = desc.(valueWriter).WriteValue([]byte("x"), nil)
	s.Require().NotNil(derr)
	s.Equal("org.bluez.Error.NotPermitted", derr.Name)
}

func (s *ExporterTestSuite) TestIntrospection() {
	intro, ok := s.conn.handler(charPath, IntrospectableInterface).(introspect.Introspectable)
	s.Require().True(ok)

	xml, derr := intro.Introspect()
	s.Require().Nil(derr)
	s.Contains(xml, gatt.CharacteristicInterface)
	s.Contains(xml, PropertiesInterface)
	s.Contains(xml, `name="ReadValue"`)
	s.Contains(xml, `name="desc0"`)

	root, _ := s.conn.handler("/", IntrospectableInterface).(introspect.Introspectable)
	xml, _ = root.Introspect()
	s.Contains(xml, ObjectManagerInterface)
	s.Contains(xml, `name="org"`)
}

func (s *ExporterTestSuite) TestUnexport() {
	s.exporter.Unexport()
	s.Empty(s.exporter.Paths())
	s.Empty(s.conn.exports)
}

func (s *ExporterTestSuite) TestStoppedLoop() {
	logger, _ := testutils.NewTestLogger()
	conn := newFakeConn()
	e := NewExporter(conn, directDispatcher{err: errors.New("main loop stopped")}, s.app, logger)
	s.Require().NoError(e.Export())

	_, derr := conn.handler(charPath, gatt.CharacteristicInterface).(valueReader).ReadValue(nil)
	s.Require().NotNil(derr)
	s.Equal("org.bluez.Error.Failed", derr.Name)
}

func TestExporterTestSuite(t *testing.T) {
	suite.Run(t, new(ExporterTestSuite))
}

func TestExportRejectsInvalidTree(t *testing.T) {
	logger, _ := testutils.NewTestLogger()
	app := gatt.NewApplication("/", "/org/bluez/wpable", logger)
	app.AddService("not-a-uuid", true)

	conn := newFakeConn()
	err := NewExporter(conn, directDispatcher{}, app, logger).Export()

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid attribute tree"))
	assert.Empty(t, conn.exports, "nothing may be exported from an invalid tree")
}

func TestExportFailure(t *testing.T) {
	logger, _ := testutils.NewTestLogger()
	app := gatt.NewApplication("/", "/org/bluez/wpable", logger)
	app.AddService("180f", true)

	conn := newFakeConn()
	conn.exportFn = func(path dbus.ObjectPath, iface string) error {
		if path == svcPath {
			return errors.New("name in use")
		}
		return nil
	}

	err := NewExporter(conn, directDispatcher{}, app, logger).Export()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(svcPath))
}
