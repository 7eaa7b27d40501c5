// Package composite implements the Composite Device (C6, spec.md §4.7): the
// glue that wires one composite's source captures (C1) through the
// capability translator (C2) and profile translator (C3) through the
// intercept gate (C4) to its target devices (C5), as bounded
// single-producer-single-consumer channels driven by one supervisor.
package composite

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/internal/errs"
	"github.com/inputplumber/inputplumber/internal/intercept"
	"github.com/inputplumber/inputplumber/internal/profile"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// channelBufSize sizes the bounded SPSC channels between pipeline stages
// (spec.md §4.7 "three bounded single-producer-single-consumer channels").
const channelBufSize = 64

// EventSource is a C1 source capture that decodes kernel events and needs
// the C2 capability translator to interpret them (evdev, HID-raw).
type EventSource interface {
	Run(ctx context.Context, out chan<- nativeevent.Event) error
}

// CapabilitySource is a C1 source capture that already emits capability
// events directly, bypassing C2 (spec.md §4.2 "IIO decoder ... each sample
// yields three capability events").
type CapabilitySource interface {
	Run(ctx context.Context, out chan<- nativeevent.CapabilityEvent) error
}

// Target is a C5 target device.
type Target interface {
	Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent) error
}

// OutputSink is a C1 source capture that can also relay a raw host->device
// output report (rumble/LED/haptic) back down to hardware, e.g. a hidraw
// node backing a uhid-emulated branded gamepad (spec.md §4.6).
type OutputSink interface {
	SendOutput(report []byte) error
}

// OutputCapableTarget is a C5 target that receives output reports from the
// host (uhid's UHID_OUTPUT) and needs them forwarded to whichever physical
// source can honor them. SetOutputSink is called once before Run with a
// function that fans a report out to every source implementing OutputSink.
type OutputCapableTarget interface {
	Target
	SetOutputSink(sink func(report []byte))
}

// Device is one running composite device: a named group of sources and
// targets sharing a capability map, a profile, and an intercept-mode cell.
type Device struct {
	log  *zap.Logger
	name string

	capTranslator *capmap.Translator
	gate          *intercept.Cell

	eventSources map[string]EventSource
	capSources   map[string]CapabilitySource

	// blockedEventSources/blockedCapSources are grabbed like any other
	// source (so the kernel node can't leak duplicate events elsewhere) but
	// their output is discarded before it ever reaches the capability
	// translator (spec.md §3 invariant 5, "blocked" source devices).
	blockedEventSources map[string]EventSource
	blockedCapSources   map[string]CapabilitySource

	targets   map[string]Target
	busTarget Target

	targetChans map[string]chan nativeevent.CapabilityEvent
	busChan     chan nativeevent.CapabilityEvent

	mu            sync.Mutex
	profileTrans  *profile.Translator
	profileCancel context.CancelFunc
}

// Config gathers everything needed to build a Device: the validated
// capability map and profile for this composite, plus the concrete
// source/target implementations the manager (C7) has already constructed
// from the composite's matched devices.
type Config struct {
	Name          string
	CapabilityMap capmap.CapabilityMap
	Profile       profile.Profile
	EventSources  map[string]EventSource
	CapSources    map[string]CapabilitySource
	// BlockedEventSources/BlockedCapSources are sources the manager grabbed
	// exclusively but whose events must never reach the capability
	// translator (spec.md §3 invariant 5).
	BlockedEventSources map[string]EventSource
	BlockedCapSources   map[string]CapabilitySource
	Targets             map[string]Target
	BusTarget           Target
}

// New builds a Device from cfg, constructing its C2/C3 translators. The
// intercept cell starts at Mode None, matching spec.md §4.5's default.
func New(log *zap.Logger, cfg Config) (*Device, error) {
	capTranslator, err := capmap.NewTranslator(log, cfg.CapabilityMap)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfigInvalid, "composite %s: capability map: %v", cfg.Name, err)
	}
	profileTrans, err := profile.NewTranslator(log, cfg.Profile)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfigInvalid, "composite %s: profile: %v", cfg.Name, err)
	}
	return &Device{
		log:                 log.With(zap.String("composite", cfg.Name)),
		name:                cfg.Name,
		capTranslator:       capTranslator,
		gate:                intercept.NewCell(),
		eventSources:        cfg.EventSources,
		capSources:          cfg.CapSources,
		blockedEventSources: cfg.BlockedEventSources,
		blockedCapSources:   cfg.BlockedCapSources,
		targets:             cfg.Targets,
		busTarget:           cfg.BusTarget,
		profileTrans:        profileTrans,
	}, nil
}

// Gate exposes the intercept-mode cell so the manager/bus service can set
// and query it (spec.md §6 CompositeDevice.InterceptMode).
func (d *Device) Gate() *intercept.Cell { return d.gate }

// SetProfile atomically swaps the active profile translator and signals the
// profile stage to restart against it (spec.md §5 "loaded-profile cell ...
// single writer: composite on profile load"). A restarting profile stage
// carries no queued motion-producer state over from the old profile.
func (d *Device) SetProfile(p *profile.Translator) {
	d.mu.Lock()
	d.profileTrans = p
	cancel := d.profileCancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Device) currentProfile() *profile.Translator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profileTrans
}

// Run drives the composite until ctx is cancelled or a sub-task fails
// twice. A single supervisor loop owns the C2/C3/gate pipeline stages;
// source captures and target devices run as independently supervised
// tasks, each restarted once on failure before the whole composite is torn
// down (spec.md §4.7).
func (d *Device) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	native := make(chan nativeevent.Event, channelBufSize)
	capIn := make(chan nativeevent.CapabilityEvent, channelBufSize)
	routed := make(chan nativeevent.CapabilityEvent, channelBufSize)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.capTranslator.Run(ctx, native, capIn); err != nil {
			d.log.Error("capability translator stage exited", zap.Error(err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runProfileStage(ctx, capIn, routed)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runGateStage(ctx, routed)
	}()

	for name, src := range d.eventSources {
		d.superviseTask(ctx, cancel, &wg, name, func(ctx context.Context) error {
			return src.Run(ctx, native)
		})
	}
	for name, src := range d.capSources {
		d.superviseTask(ctx, cancel, &wg, name, func(ctx context.Context) error {
			return src.Run(ctx, capIn)
		})
	}
	for name, src := range d.blockedEventSources {
		d.superviseTask(ctx, cancel, &wg, name, func(ctx context.Context) error {
			return runBlockedEventSource(ctx, src)
		})
	}
	for name, src := range d.blockedCapSources {
		d.superviseTask(ctx, cancel, &wg, name, func(ctx context.Context) error {
			return runBlockedCapSource(ctx, src)
		})
	}

	d.targetChans = make(map[string]chan nativeevent.CapabilityEvent, len(d.targets))
	for name, tgt := range d.targets {
		ch := make(chan nativeevent.CapabilityEvent, channelBufSize)
		d.targetChans[name] = ch
		tgt := tgt
		if oct, ok := tgt.(OutputCapableTarget); ok {
			oct.SetOutputSink(d.routeOutput)
		}
		d.superviseTask(ctx, cancel, &wg, name, func(ctx context.Context) error {
			return tgt.Run(ctx, ch)
		})
	}
	if d.busTarget != nil {
		d.busChan = make(chan nativeevent.CapabilityEvent, channelBufSize)
		d.superviseTask(ctx, cancel, &wg, "bus", func(ctx context.Context) error {
			return d.busTarget.Run(ctx, d.busChan)
		})
	}

	wg.Wait()
	return nil
}

// routeOutput fans a host->device output report out to every source this
// composite owns that can accept one, logging rather than failing the
// composite when delivery to a given source errs (spec.md §4.6: output
// reports flow back to whichever source capture can honor them).
func (d *Device) routeOutput(report []byte) {
	deliver := func(name string, src any) {
		sink, ok := src.(OutputSink)
		if !ok {
			return
		}
		if err := sink.SendOutput(report); err != nil {
			d.log.Warn("failed to deliver output report", zap.String("source", name), zap.Error(err))
		}
	}
	for name, src := range d.eventSources {
		deliver(name, src)
	}
	for name, src := range d.capSources {
		deliver(name, src)
	}
}

// runProfileStage restarts the profile translator against whatever the
// current pointer is whenever SetProfile cancels the sub-context, modeling
// the spec's "atomically swappable" profile cell as a restart loop rather
// than true lock-free reference swapping (the motion-producer goroutines a
// profile owns must restart together with it anyway).
func (d *Device) runProfileStage(ctx context.Context, in <-chan nativeevent.CapabilityEvent, out chan<- nativeevent.CapabilityEvent) {
	for {
		if ctx.Err() != nil {
			return
		}
		subCtx, subCancel := context.WithCancel(ctx)
		d.mu.Lock()
		d.profileCancel = subCancel
		trans := d.profileTrans
		d.mu.Unlock()

		err := trans.Run(subCtx, in, out)
		subCancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.log.Error("profile stage exited", zap.Error(err))
			return
		}
		// subCtx was cancelled by SetProfile; loop to pick up the new pointer.
	}
}

// runGateStage applies the intercept gate to every routed capability event
// and fans it out to the target(s) or the bus (spec.md §4.5).
func (d *Device) runGateStage(ctx context.Context, in <-chan nativeevent.CapabilityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			route, _ := intercept.Resolve(d.gate, ev.Capability)
			switch route {
			case intercept.RouteBus:
				d.sendBus(ev)
			case intercept.RouteBoth:
				d.sendBus(ev)
				d.sendTargets(ev)
			default:
				d.sendTargets(ev)
			}
		}
	}
}

func (d *Device) sendBus(ev nativeevent.CapabilityEvent) {
	if d.busChan == nil {
		return
	}
	select {
	case d.busChan <- ev:
	default:
	}
}

func (d *Device) sendTargets(ev nativeevent.CapabilityEvent) {
	for _, ch := range d.targetChans {
		select {
		case ch <- ev:
		default:
		}
	}
}

// runBlockedEventSource drains a blocked evdev/HID-raw source into a local
// channel that is never read by anyone else, so the device stays grabbed
// (and thus silent everywhere else on the system) without its events ever
// reaching the capability translator.
func runBlockedEventSource(ctx context.Context, src EventSource) error {
	sink := make(chan nativeevent.Event, channelBufSize)
	go drainEvents(ctx, sink)
	return src.Run(ctx, sink)
}

// runBlockedCapSource is the CapabilitySource counterpart of
// runBlockedEventSource (spec.md §3 invariant 5, blocked IIO nodes).
func runBlockedCapSource(ctx context.Context, src CapabilitySource) error {
	sink := make(chan nativeevent.CapabilityEvent, channelBufSize)
	go drainCapabilityEvents(ctx, sink)
	return src.Run(ctx, sink)
}

func drainEvents(ctx context.Context, ch <-chan nativeevent.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

func drainCapabilityEvents(ctx context.Context, ch <-chan nativeevent.CapabilityEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		}
	}
}

// superviseTask runs fn until ctx is cancelled, restarting it once on
// failure before tearing the whole composite down (spec.md §4.7 "the
// supervisor attempts to restart that task once; on repeated failure the
// composite is torn down").
func (d *Device) superviseTask(ctx context.Context, teardown context.CancelFunc, wg *sync.WaitGroup, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		attempts := 0
		for {
			err := fn(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}
			attempts++
			d.log.Warn("task failed", zap.String("task", name), zap.Int("attempt", attempts), zap.Error(err))
			if attempts > 1 {
				d.log.Error("task failed repeatedly, tearing down composite", zap.String("task", name))
				teardown()
				return
			}
		}
	}()
}
