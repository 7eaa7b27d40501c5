package profile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// Translator is the C3 Profile Translator. Each instance owns the producer
// goroutines for any motion mappings in its profile, so Run must be called
// only once per instance; it runs until the composite device stops or a
// new profile replaces the instance.
type Translator struct {
	log *zap.Logger

	// direct holds every non-motion target for a given source capability,
	// keyed by the capability it was matched against (spec.md §4.4
	// "source_event.matches(event) -> emit target_events with value carried
	// through").
	direct map[capability.Capability]directRoute
	motion []*motionRoute
}

type directRoute struct {
	threshold float64
	targets   []TargetEvent
}

type motionRoute struct {
	source     capability.Capability
	threshold  float64
	target     capability.Capability
	speedPPS   float64
	tickRate   float64
	deflection atomic.Float64
}

// NewTranslator builds a Translator from a validated Profile.
func NewTranslator(log *zap.Logger, p Profile) (*Translator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t := &Translator{
		log:    log,
		direct: make(map[capability.Capability]directRoute),
	}
	for _, m := range p.Mappings {
		var direct []TargetEvent
		for _, te := range m.TargetEvents {
			if te.Capability.Kind == capability.KindMouseMotion {
				rate := DefaultMotionTickRate
				if te.Motion.TickRate > 0 {
					rate = te.Motion.TickRate
				}
				t.motion = append(t.motion, &motionRoute{
					source:    m.SourceEvent.Capability,
					threshold: m.SourceEvent.Threshold,
					target:    te.Capability,
					speedPPS:  te.Motion.SpeedPPS,
					tickRate:  rate,
				})
				continue
			}
			direct = append(direct, te)
		}
		if len(direct) > 0 {
			t.direct[m.SourceEvent.Capability] = directRoute{threshold: m.SourceEvent.Threshold, targets: direct}
		}
	}
	return t, nil
}

// Run consumes capability events from in, rewrites them per the profile, and
// emits the results to out until ctx is cancelled or in closes. Motion
// producer goroutines are started here and are joined before Run returns.
func (t *Translator) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent, out chan<- nativeevent.CapabilityEvent) error {
	var wg sync.WaitGroup
	for _, m := range t.motion {
		wg.Add(1)
		go t.runMotionProducer(ctx, m, out, &wg)
	}
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			t.handle(ev, out)
		}
	}
}

func (t *Translator) handle(ev nativeevent.CapabilityEvent, out chan<- nativeevent.CapabilityEvent) {
	for _, m := range t.motion {
		if m.source != ev.Capability {
			continue
		}
		v := ev.Value
		if m.threshold > 0 {
			v = nativeevent.ApplyDeadzone(v, m.threshold)
		}
		m.deflection.Store(v)
	}

	route, ok := t.direct[ev.Capability]
	if !ok {
		return
	}
	v := ev.Value
	if route.threshold > 0 {
		v = nativeevent.ApplyDeadzone(v, route.threshold)
	}
	for _, te := range route.targets {
		out <- nativeevent.NewCapabilityEvent(te.Capability, v, ev.Timestamp)
	}
}

// runMotionProducer ticks at the mapping's fixed rate, converting the most
// recently observed stick deflection into a relative motion delta, and stops
// emitting entirely once the deflection is within the source's deadzone
// (spec.md §4.4 "stop emitting when the stick is within its deadzone").
func (t *Translator) runMotionProducer(ctx context.Context, m *motionRoute, out chan<- nativeevent.CapabilityEvent, wg *sync.WaitGroup) {
	defer wg.Done()
	interval := time.Duration(float64(time.Second) / m.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			v := m.deflection.Load()
			if v == 0 {
				continue
			}
			delta := m.speedPPS * v / m.tickRate
			out <- nativeevent.NewCapabilityEvent(m.target, delta, tick)
		}
	}
}
