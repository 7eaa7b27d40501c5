package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/ghodss/yaml"
	udev "github.com/jochenvg/go-udev"
	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/internal/composite"
	"github.com/inputplumber/inputplumber/internal/configsvc"
	"github.com/inputplumber/inputplumber/internal/intercept"
	"github.com/inputplumber/inputplumber/internal/profile"
	"github.com/inputplumber/inputplumber/internal/source/evdevsrc"
	"github.com/inputplumber/inputplumber/internal/source/hidrawsrc"
	"github.com/inputplumber/inputplumber/internal/source/iiosrc"
	"github.com/inputplumber/inputplumber/internal/target/bustgt"
	"github.com/inputplumber/inputplumber/internal/target/uhidtgt"
	"github.com/inputplumber/inputplumber/internal/target/uinputtgt"
	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// rescanInterval is the periodic full re-enumeration period. Hotplug events
// from udev normally trigger a rescan immediately; this is the fallback that
// keeps the daemon correct even when a udev monitor can't be opened (spec.md
// §4.1 "devices are discovered at startup and as they are hotplugged").
const rescanInterval = 5 * time.Second

// Manager is the Manager (C7, spec.md §4.1): it loads composite-device
// configurations, discovers kernel input nodes, matches them against
// configurations in priority order and drives composite devices through
// their create/grow/shrink/destroy lifecycle.
type Manager struct {
	log       *zap.Logger
	configSvc *configsvc.Service
	dbusConn  *dbus.Conn

	devicesDirs []string
	dmiFacts    map[string]string

	mu      sync.Mutex
	configs []CompositeDeviceConfig
	running map[string]*runningComposite // keyed by config name
}

// runningComposite tracks one live composite instance: its own cancellable
// context, the *composite.Device driving it, and which node paths currently
// feed it (so a rescan can tell whether its source set actually changed).
type runningComposite struct {
	cfg    CompositeDeviceConfig
	dev    *composite.Device
	cancel context.CancelFunc
	done   chan struct{}
	nodes  map[string]bool
}

// New creates a Manager. devicesDirs are the configuration roots to load
// composite_device_v1 YAML from, lowest priority first: a file in a later
// root overrides a same-named file in an earlier one (spec.md §6 "the
// /etc tree overrides /usr/share"). dbusConn is optional; when nil, bus
// targets are skipped for every composite.
func New(log *zap.Logger, configSvc *configsvc.Service, devicesDirs []string, dbusConn *dbus.Conn) *Manager {
	return &Manager{
		log:         log.Named("manager"),
		configSvc:   configSvc,
		dbusConn:    dbusConn,
		devicesDirs: devicesDirs,
		running:     make(map[string]*runningComposite),
	}
}

// Start loads configuration, reads DMI facts and runs the discovery loop
// until ctx is cancelled, tearing down every running composite on exit.
func (m *Manager) Start(ctx context.Context) error {
	m.dmiFacts = readDMIFacts()

	entries, err := configsvc.RegisterDir[CompositeDeviceConfig](m.configSvc, m.devicesDirs, m.onConfigsChanged)
	if err != nil {
		return fmt.Errorf("manager: load composite configs: %w", err)
	}
	m.onConfigsChanged(entries)

	hotplug := m.watchHotplug(ctx)

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	m.rescan(ctx)
	for {
		select {
		case <-ctx.Done():
			m.teardownAll()
			return nil
		case <-ticker.C:
			m.rescan(ctx)
		case <-hotplug:
			m.rescan(ctx)
		}
	}
}

// onConfigsChanged is the configsvc.RegisterDir callback: it replaces the
// manager's config snapshot and decodes each entry's YAML file, sorted by
// priority ascending per spec.md §4.1 (highest-priority, i.e. lowest-number,
// config wins first when several match the same node).
func (m *Manager) onConfigsChanged(entries []configsvc.DirEntry[CompositeDeviceConfig]) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })
	cfgs := make([]CompositeDeviceConfig, len(entries))
	for i, e := range entries {
		cfgs[i] = e.Config
	}
	m.mu.Lock()
	m.configs = cfgs
	m.mu.Unlock()
}

// rescan re-enumerates kernel nodes, re-evaluates every configuration
// against the current DMI facts and node set, and reconciles running
// composites to match (spec.md §4.1 points 1-4).
func (m *Manager) rescan(ctx context.Context) {
	nodes, err := enumerateNodes()
	if err != nil {
		m.log.Warn("node enumeration failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	configs := append([]CompositeDeviceConfig(nil), m.configs...)
	facts := m.dmiFacts
	m.mu.Unlock()

	wanted := make(map[string]matchedComposite)
	claimed := make(map[string]bool)

	for _, cfg := range configs {
		if !cfg.dmiSatisfied(facts) {
			continue
		}
		groups := make(map[Group]*groupMatch)
		var blocked []NodeInfo
		for _, n := range nodes {
			if claimed[n.Path] {
				continue
			}
			entry, ok := matchEntry(cfg, n)
			if !ok || entry.Ignore {
				continue
			}
			if entry.Blocked {
				// Grabbed so the kernel node can't leak duplicate events
				// elsewhere, but never counted toward group satisfaction and
				// never fed past C1 (spec.md §3 invariant 5).
				blocked = append(blocked, n)
				continue
			}
			gm, ok := groups[entry.Group]
			if !ok {
				gm = &groupMatch{unique: resolveUnique(entry)}
				groups[entry.Group] = gm
			}
			gm.nodes = append(gm.nodes, n)
		}
		required := cfg.requiredGroups()
		satisfied := len(required) > 0
		for g := range required {
			if groups[g] == nil || len(groups[g].nodes) == 0 {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}

		for g := range groups {
			sortNodesByPath(groups[g].nodes)
		}

		instances := instancesFor(groups, cfg.effectiveMaxSources())
		for i, inst := range instances {
			if !instanceSatisfiesRequired(cfg, inst, required) {
				// A non-unique group's matches were exhausted pairing
				// against a unique group's extra instances; skip rather
				// than start a composite missing a required group.
				continue
			}
			assigned := append([]NodeInfo(nil), inst...)
			if i == 0 {
				assigned = append(assigned, blocked...)
			}
			for _, n := range assigned {
				claimed[n.Path] = true
			}
			name := cfg.Name
			if len(instances) > 1 {
				name = fmt.Sprintf("%s#%d", cfg.Name, i+1)
			}
			wanted[name] = matchedComposite{cfg: cfg, nodes: assigned}
		}
	}

	m.reconcile(ctx, wanted)
}

type matchedComposite struct {
	cfg   CompositeDeviceConfig
	nodes []NodeInfo
}

// groupMatch holds the nodes matched for one group along with whether that
// group's source_devices entry is "unique" (spec.md §4.1 invariant 6: a
// unique group's extra matches spawn new composite instances instead of
// merging into one, up to maximum_sources; defaults to true).
type groupMatch struct {
	unique bool
	nodes  []NodeInfo
}

// resolveUnique returns entry's effective Unique value, defaulting to true
// when unset (matching the original config schema's documented default).
func resolveUnique(entry SourceDeviceEntry) bool {
	if entry.Unique == nil {
		return true
	}
	return *entry.Unique
}

// instancesFor splits a config's matched groups into one or more composite
// instances. Non-unique groups are merged whole into every instance; unique
// groups are zipped one node per instance, in matched order, spawning as
// many instances as the largest unique group has matches (capped at
// maxSources). A config with no unique group over-matched produces exactly
// one instance, preserving prior behavior.
func instancesFor(groups map[Group]*groupMatch, maxSources int) [][]NodeInfo {
	count := 1
	for _, gm := range groups {
		if gm.unique && len(gm.nodes) > count {
			count = len(gm.nodes)
		}
	}
	if maxSources > 0 && count > maxSources {
		count = maxSources
	}

	instances := make([][]NodeInfo, count)
	for _, gm := range groups {
		if gm.unique {
			for i := 0; i < count && i < len(gm.nodes); i++ {
				instances[i] = append(instances[i], gm.nodes[i])
			}
			continue
		}
		for i := range instances {
			instances[i] = append(instances[i], gm.nodes...)
		}
	}
	return instances
}

// sortNodesByPath orders a group's matched nodes deterministically so
// repeated rescans zip the same physical devices into the same instance.
func sortNodesByPath(nodes []NodeInfo) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
}

// instanceSatisfiesRequired reports whether every required group has a node
// in this instance's assigned set.
func instanceSatisfiesRequired(cfg CompositeDeviceConfig, nodes []NodeInfo, required map[Group]bool) bool {
	present := make(map[Group]bool, len(required))
	for _, n := range nodes {
		entry, ok := matchEntry(cfg, n)
		if !ok {
			continue
		}
		present[entry.Group] = true
	}
	for g := range required {
		if !present[g] {
			return false
		}
	}
	return true
}

// matchEntry finds the first matching, non-ignored-or-not source_devices
// entry for node n, per spec.md §4.1 "entries are evaluated in order; the
// first match governs".
func matchEntry(cfg CompositeDeviceConfig, n NodeInfo) (SourceDeviceEntry, bool) {
	for _, e := range cfg.SourceDevices {
		ok, err := e.matches(n)
		if err != nil || !ok {
			continue
		}
		return e, true
	}
	return SourceDeviceEntry{}, false
}

// reconcile starts composites that are newly satisfied, tears down ones that
// no longer are, and restarts any whose assigned node set changed (spec.md
// §4.1 "grown or shrunk as devices are attached/removed": modeled as a
// restart, matching the same simplification used for profile hot-swap).
func (m *Manager) reconcile(ctx context.Context, wanted map[string]matchedComposite) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, rc := range m.running {
		if _, ok := wanted[name]; !ok {
			m.log.Info("tearing down composite, no longer satisfied", zap.String("composite", name))
			rc.cancel()
			<-rc.done
			delete(m.running, name)
		}
	}

	for name, want := range wanted {
		nodeSet := make(map[string]bool, len(want.nodes))
		for _, n := range want.nodes {
			nodeSet[n.Path] = true
		}
		if rc, ok := m.running[name]; ok {
			if sameNodeSet(rc.nodes, nodeSet) {
				continue
			}
			m.log.Info("restarting composite, source set changed", zap.String("composite", name))
			rc.cancel()
			<-rc.done
			delete(m.running, name)
		}
		rc, err := m.startComposite(ctx, want.cfg, want.nodes)
		if err != nil {
			m.log.Error("failed to start composite", zap.String("composite", name), zap.Error(err))
			continue
		}
		m.running[name] = rc
	}
}

func sameNodeSet(a map[string]bool, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// startComposite loads the composite's capability map and profile, builds
// its source decoders and target devices from the matched nodes and config,
// and spawns it.
func (m *Manager) startComposite(ctx context.Context, cfg CompositeDeviceConfig, nodes []NodeInfo) (*runningComposite, error) {
	capMap, err := loadCapabilityMap(cfg.CapabilityMapPath)
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", cfg.Name, err)
	}
	prof, err := loadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", cfg.Name, err)
	}

	eventSources := make(map[string]composite.EventSource)
	capSources := make(map[string]composite.CapabilitySource)
	blockedEventSources := make(map[string]composite.EventSource)
	blockedCapSources := make(map[string]composite.CapabilitySource)
	for _, n := range nodes {
		entry, ok := matchEntry(cfg, n)
		if !ok {
			continue
		}
		switch n.Kind {
		case NodeEvdev:
			src, err := evdevsrc.Open(n.Path)
			if err != nil {
				m.log.Warn("failed to open evdev source", zap.String("path", n.Path), zap.Error(err))
				continue
			}
			if entry.Blocked {
				blockedEventSources[n.Path] = src
			} else {
				eventSources[n.Path] = src
			}
		case NodeHidraw:
			fields := hidrawFieldsFor(capMap)
			if entry.Hidraw != nil && entry.Hidraw.ReportLen > 0 {
				for i := range fields {
					fields[i].ReportLen = entry.Hidraw.ReportLen
				}
			}
			src, err := hidrawsrc.Open(n.Path, fields)
			if err != nil {
				m.log.Warn("failed to open hidraw source", zap.String("path", n.Path), zap.Error(err))
				continue
			}
			if entry.Blocked {
				blockedEventSources[n.Path] = src
			} else {
				eventSources[n.Path] = src
			}
		case NodeIIO:
			matrix := iiosrc.Identity
			imuName := capability.ImuGyro1
			if entry.IIO != nil {
				if entry.IIO.MountMatrix != nil {
					matrix = *entry.IIO.MountMatrix
				}
				if entry.IIO.ImuName != "" {
					imuName = capability.ImuName(entry.IIO.ImuName)
				}
			}
			src, err := iiosrc.Open(n.Path, iioKindFor(n.Name), imuName, matrix, 0)
			if err != nil {
				m.log.Warn("failed to open iio source", zap.String("path", n.Path), zap.Error(err))
				continue
			}
			if entry.Blocked {
				blockedCapSources[n.Path] = src
			} else {
				capSources[n.Path] = src
			}
		}
	}

	targets, busTarget, err := m.buildTargets(cfg)
	if err != nil {
		return nil, err
	}

	dev, err := composite.New(m.log, composite.Config{
		Name:                cfg.Name,
		CapabilityMap:       capMap,
		Profile:             prof,
		EventSources:        eventSources,
		CapSources:          capSources,
		BlockedEventSources: blockedEventSources,
		BlockedCapSources:   blockedCapSources,
		Targets:             targets,
		BusTarget:           busTarget,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := dev.Run(runCtx); err != nil {
			m.log.Error("composite exited with error", zap.String("composite", cfg.Name), zap.Error(err))
		}
	}()

	nodeSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		nodeSet[n.Path] = true
	}
	return &runningComposite{cfg: cfg, dev: dev, cancel: cancel, done: done, nodes: nodeSet}, nil
}

// buildTargets constructs one Target per target_devices entry, plus an
// optional bus target when the manager holds a D-Bus connection (spec.md
// §4.6).
func (m *Manager) buildTargets(cfg CompositeDeviceConfig) (map[string]composite.Target, composite.Target, error) {
	targets := make(map[string]composite.Target)
	var busTarget composite.Target
	for _, td := range cfg.TargetDevices {
		switch td.Kind {
		case "uinput-gamepad":
			t, err := uinputtgt.New(m.log, uinputtgt.KindGamepad, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = t
		case "uinput-mouse":
			t, err := uinputtgt.New(m.log, uinputtgt.KindMouse, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = t
		case "uinput-keyboard":
			t, err := uinputtgt.New(m.log, uinputtgt.KindKeyboard, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = t
		case "uinput-touchpad":
			t, err := uinputtgt.New(m.log, uinputtgt.KindTouchpad, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = t
		case "uinput-touchscreen":
			t, err := uinputtgt.New(m.log, uinputtgt.KindTouchscreen, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = t
		case "uhid-dualsense":
			t, err := uhidtgt.NewDualSense(m.log, td.Name)
			if err != nil {
				return nil, nil, fmt.Errorf("target %s: %w", td.Name, err)
			}
			targets[td.Name] = &dualSenseAdapter{t: t}
		case "bus":
			if m.dbusConn == nil {
				continue
			}
			path := dbus.ObjectPath(fmt.Sprintf("/org/inputplumber/Composite/%s", sanitizeObjectPathSegment(cfg.Name)))
			busTarget = bustgt.New(m.log, m.dbusConn, path)
		default:
			return nil, nil, fmt.Errorf("target %s: unknown kind %q", td.Name, td.Kind)
		}
	}
	return targets, busTarget, nil
}

// dualSenseAdapter satisfies composite.OutputCapableTarget for
// uhidtgt.DualSenseTarget, whose Run takes an extra onOutput callback for
// host->device reports (rumble/LED/haptic). The sink is supplied by
// composite.Device.Run via SetOutputSink before the target starts, and
// relays reports to whichever of the composite's sources can send them
// (spec.md §4.6).
type dualSenseAdapter struct {
	t    *uhidtgt.DualSenseTarget
	sink func(report []byte)
}

func (a *dualSenseAdapter) SetOutputSink(sink func(report []byte)) {
	a.sink = sink
}

func (a *dualSenseAdapter) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent) error {
	onOutput := a.sink
	if onOutput == nil {
		onOutput = func([]byte) {}
	}
	return a.t.Run(ctx, in, onOutput)
}

// iioKindFor guesses the IIO device's sample kind from its sysfs "name"
// attribute (e.g. "accel_3d" vs "gyro_3d"), since an IIO matcher only
// identifies the device, not which physical quantity it reports.
func iioKindFor(name string) iiosrc.Kind {
	if strings.Contains(strings.ToLower(name), "gyro") {
		return iiosrc.KindGyro
	}
	return iiosrc.KindAccel
}

// hidrawFieldsFor lowers a capability map's HidrawPredicates into the
// FieldSpec list a hidrawsrc.Source watches. ReportLen defaults to 0 and
// must be overridden by the matched entry's configured ReportLen.
func hidrawFieldsFor(m capmap.CapabilityMap) []hidrawsrc.FieldSpec {
	seen := make(map[capmap.HidrawPredicate]bool)
	var fields []hidrawsrc.FieldSpec
	for _, mapping := range m.Mappings {
		for _, pred := range mapping.SourceEvents {
			if pred.Hidraw == nil || seen[*pred.Hidraw] {
				continue
			}
			seen[*pred.Hidraw] = true
			fields = append(fields, hidrawsrc.FieldSpec{HidrawPredicate: *pred.Hidraw})
		}
	}
	return fields
}

// loadCapabilityMap reads and decodes a capability map file, accepting
// either YAML or JSON (spec.md §6).
func loadCapabilityMap(path string) (capmap.CapabilityMap, error) {
	if path == "" {
		return capmap.CapabilityMap{}, fmt.Errorf("capability map path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return capmap.CapabilityMap{}, fmt.Errorf("read capability map: %w", err)
	}
	jsonB, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return capmap.CapabilityMap{}, fmt.Errorf("capability map: %w", err)
	}
	m, err := capmap.Decode(jsonB)
	if err != nil {
		return capmap.CapabilityMap{}, err
	}
	if err := m.Validate(); err != nil {
		return capmap.CapabilityMap{}, err
	}
	return m, nil
}

// loadProfile reads and decodes a device profile file; an empty path yields
// the zero-mapping passthrough profile.
func loadProfile(path string) (profile.Profile, error) {
	if path == "" {
		return profile.Profile{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	jsonB, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("profile: %w", err)
	}
	var p profile.Profile
	if err := yaml.Unmarshal(jsonB, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("profile: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

// ListComposites returns the names of every currently running composite,
// for the D-Bus service's Manager.ListDevices (spec.md §6).
func (m *Manager) ListComposites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.running))
	for name := range m.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceInfo describes one kernel source node currently claimed by a
// running composite, for CLI introspection (cli/source.rs's "sources
// list" in the original implementation).
type SourceInfo struct {
	Composite string
	Path      string
}

// ListSources reports every kernel node currently grabbed by a running
// composite, across all composites.
func (m *Manager) ListSources() []SourceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SourceInfo
	for name, rc := range m.running {
		for path := range rc.nodes {
			out = append(out, SourceInfo{Composite: name, Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite < out[j].Composite
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// TargetInfo describes one configured target device of a running composite,
// for CLI introspection (cli/target.rs's "targets list").
type TargetInfo struct {
	Composite string
	Name      string
	Kind      string
}

// ListTargets reports every target device configured on a running
// composite, across all composites.
func (m *Manager) ListTargets() []TargetInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TargetInfo
	for name, rc := range m.running {
		for _, td := range rc.cfg.TargetDevices {
			out = append(out, TargetInfo{Composite: name, Name: td.Name, Kind: td.Kind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite < out[j].Composite
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SupportedTargetKinds lists every target_devices "kind" buildTargets
// recognizes, for CLI introspection (cli/target.rs's "targets
// supported-devices").
func SupportedTargetKinds() []string {
	return []string{
		"uinput-gamepad", "uinput-mouse", "uinput-keyboard",
		"uinput-touchpad", "uinput-touchscreen", "uhid-dualsense", "bus",
	}
}

// InterceptMode reports the intercept-gate mode of a running composite
// (spec.md §6 CompositeDevice.InterceptMode).
func (m *Manager) InterceptMode(name string) (intercept.Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.running[name]
	if !ok {
		return intercept.ModeNone, false
	}
	return rc.dev.Gate().Get(), true
}

// SetInterceptMode sets a running composite's intercept-gate mode (spec.md
// §6 CompositeDevice.SetInterceptMode).
func (m *Manager) SetInterceptMode(name string, mode intercept.Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.running[name]
	if !ok {
		return false
	}
	rc.dev.Gate().Set(mode)
	return true
}

// LoadProfilePath loads and validates the profile at path and swaps it into
// the named running composite (spec.md §6 CompositeDevice.LoadProfilePath).
func (m *Manager) LoadProfilePath(name, path string) error {
	prof, err := loadProfile(path)
	if err != nil {
		return err
	}
	trans, err := profile.NewTranslator(m.log, prof)
	if err != nil {
		return err
	}
	m.mu.Lock()
	rc, ok := m.running[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("composite %s is not running", name)
	}
	rc.dev.SetProfile(trans)
	return nil
}

func (m *Manager) teardownAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, rc := range m.running {
		rc.cancel()
		<-rc.done
		delete(m.running, name)
	}
}

// watchHotplug opens a udev netlink monitor on the input subsystem and
// forwards a signal on the returned channel for every event it reports,
// whatever the action (signals are coalesced while one is still pending),
// best-effort: if the monitor can't be created the channel is simply never
// written to and the manager falls back to its periodic rescan.
func (m *Manager) watchHotplug(ctx context.Context) <-chan struct{} {
	notify := make(chan struct{}, 1)
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		m.log.Warn("udev monitor unavailable, relying on periodic rescan")
		return notify
	}
	if err := mon.FilterAddMatchSubsystem("input"); err != nil {
		m.log.Warn("udev monitor filter failed", zap.Error(err))
	}
	deviceCh, _, err := mon.DeviceChan(ctx)
	if err != nil {
		m.log.Warn("udev monitor start failed, relying on periodic rescan", zap.Error(err))
		return notify
	}
	go func() {
		for range deviceCh {
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}()
	return notify
}

// readDMIFacts reads the well-known DMI identity files under
// /sys/class/dmi/id, gathered once at startup (spec.md §4.1).
func readDMIFacts() map[string]string {
	facts := make(map[string]string)
	attrs := map[string]string{
		"product_name": "product_name",
		"sys_vendor":   "sys_vendor",
	}
	for key, file := range attrs {
		facts[key] = readSysAttr(filepath.Join("/sys/class/dmi/id", file))
	}
	facts["cpu_vendor"] = readCPUVendor()
	return facts
}

func readCPUVendor() string {
	b, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(b), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(k) == "vendor_id" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// enumerateNodes walks /dev/input, /dev and /sys/bus/iio/devices for the
// three kernel node families spec.md §6 names.
func enumerateNodes() ([]NodeInfo, error) {
	var nodes []NodeInfo

	inputDir := "/dev/input"
	if entries, err := os.ReadDir(inputDir); err == nil {
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), "event") {
				continue
			}
			nodes = append(nodes, probeEvdevNode(filepath.Join(inputDir, e.Name())))
		}
	}

	if entries, err := os.ReadDir("/dev"); err == nil {
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), "hidraw") {
				continue
			}
			nodes = append(nodes, probeHidrawNode(filepath.Join("/dev", e.Name())))
		}
	}

	iioRoot := "/sys/bus/iio/devices"
	if entries, err := os.ReadDir(iioRoot); err == nil {
		for _, e := range entries {
			nodes = append(nodes, probeIIONode(filepath.Join(iioRoot, e.Name())))
		}
	}

	return nodes, nil
}

func sanitizeObjectPathSegment(s string) string {
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
