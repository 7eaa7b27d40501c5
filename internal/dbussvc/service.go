// Package dbussvc exports the Manager and its composite devices over D-Bus
// (spec.md §6), grounded on the Export(delegate, path, iface) pattern in
// other_examples' nya3jp-tast-tests bluez Agent, adapted from a D-Bus client
// wrapper to a server-side exporter.
package dbussvc

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/internal/intercept"
	"github.com/inputplumber/inputplumber/internal/manager"
)

const (
	busName        = "org.inputplumber.InputPlumber"
	managerPath    = dbus.ObjectPath("/org/inputplumber/Manager")
	managerIface   = "org.inputplumber.Manager"
	compositeIface = "org.inputplumber.Composite.Device"
)

// Service exports the Manager object and one Composite.Device object per
// running composite on the system bus.
type Service struct {
	log  *zap.Logger
	conn *dbus.Conn
	mgr  *manager.Manager

	exported map[string]bool
}

// New connects to the system bus and requests the daemon's well-known name.
// Connecting to the bus is optional infrastructure: callers that can't reach
// a bus (e.g. a sandboxed test environment) should simply not construct a
// Service and run the Manager without bus export. The Manager is attached
// separately via AttachManager once it has been built with this Service's
// connection (internal/manager.New needs a *dbus.Conn to hand to bus
// targets, and the Service needs the resulting *manager.Manager to list
// composites — AttachManager breaks that construction cycle).
func New(log *zap.Logger) (*Service, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbussvc: connect to system bus: %w", err)
	}
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dbussvc: request name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("dbussvc: name %s already owned", busName)
	}
	return &Service{log: log.Named("dbus"), conn: conn, exported: make(map[string]bool)}, nil
}

// AttachManager wires the Manager whose composites this Service exports.
func (s *Service) AttachManager(mgr *manager.Manager) { s.mgr = mgr }

// Conn exposes the underlying connection so the manager can hand it to bus
// targets (internal/target/bustgt) for per-composite signal emission.
func (s *Service) Conn() *dbus.Conn { return s.conn }

// Close releases the bus connection.
func (s *Service) Close() error {
	return s.conn.Close()
}

// ExportManager exports the top-level Manager object (spec.md §6
// "Manager.ListDevices").
func (s *Service) ExportManager() error {
	delegate := &managerDelegate{svc: s}
	if err := s.conn.Export(delegate, managerPath, managerIface); err != nil {
		return fmt.Errorf("dbussvc: export manager: %w", err)
	}
	return nil
}

// Sync exports a Composite.Device object for every composite the Manager
// currently reports running, and stops tracking ones that disappeared. Call
// this after every Manager reconciliation pass.
func (s *Service) Sync() {
	running := make(map[string]bool)
	for _, name := range s.mgr.ListComposites() {
		running[name] = true
		if s.exported[name] {
			continue
		}
		path := compositeObjectPath(name)
		delegate := &compositeDelegate{svc: s, name: name}
		if err := s.conn.Export(delegate, path, compositeIface); err != nil {
			s.log.Error("failed to export composite object", zap.String("composite", name), zap.Error(err))
			continue
		}
		s.exported[name] = true
	}
	for name := range s.exported {
		if running[name] {
			continue
		}
		s.conn.Export(nil, compositeObjectPath(name), compositeIface)
		delete(s.exported, name)
	}
}

func compositeObjectPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/inputplumber/Composite/%s", sanitizeName(name)))
}

func sanitizeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

// managerDelegate implements the exported Manager interface's methods.
type managerDelegate struct {
	svc *Service
}

// ListDevices returns the object paths of every running composite device
// (spec.md §6 Manager.ListDevices).
func (d *managerDelegate) ListDevices() ([]dbus.ObjectPath, *dbus.Error) {
	names := d.svc.mgr.ListComposites()
	paths := make([]dbus.ObjectPath, len(names))
	for i, n := range names {
		paths[i] = compositeObjectPath(n)
	}
	return paths, nil
}

// compositeDelegate implements the exported Composite.Device interface's
// methods for one named composite.
type compositeDelegate struct {
	svc  *Service
	name string
}

// InterceptMode returns the composite's current intercept-gate mode as its
// String() form (spec.md §6 CompositeDevice.InterceptMode).
func (d *compositeDelegate) InterceptMode() (string, *dbus.Error) {
	mode, ok := d.svc.mgr.InterceptMode(d.name)
	if !ok {
		return "", dbus.NewError("org.inputplumber.Error.NotFound", []interface{}{"composite not running"})
	}
	return mode.String(), nil
}

// SetInterceptMode sets the composite's intercept-gate mode by name
// ("None","Pass","All","GamepadOnly"), per spec.md §6.
func (d *compositeDelegate) SetInterceptMode(mode string) *dbus.Error {
	m, ok := parseInterceptMode(mode)
	if !ok {
		return dbus.NewError("org.inputplumber.Error.InvalidArgs", []interface{}{"unknown intercept mode " + mode})
	}
	if !d.svc.mgr.SetInterceptMode(d.name, m) {
		return dbus.NewError("org.inputplumber.Error.NotFound", []interface{}{"composite not running"})
	}
	return nil
}

// LoadProfilePath loads and swaps in a new device profile from path
// (spec.md §6 CompositeDevice.LoadProfilePath).
func (d *compositeDelegate) LoadProfilePath(path string) *dbus.Error {
	if err := d.svc.mgr.LoadProfilePath(d.name, path); err != nil {
		return dbus.NewError("org.inputplumber.Error.Failed", []interface{}{err.Error()})
	}
	return nil
}

func parseInterceptMode(s string) (intercept.Mode, bool) {
	switch s {
	case "None":
		return intercept.ModeNone, true
	case "Pass":
		return intercept.ModePass, true
	case "All":
		return intercept.ModeAll, true
	case "GamepadOnly":
		return intercept.ModeGamepadOnly, true
	default:
		return 0, false
	}
}
