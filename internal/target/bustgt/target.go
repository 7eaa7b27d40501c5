// Package bustgt implements the bus target (C5, spec.md §4.6): it publishes
// capability events as signals over the D-Bus object exposed for the
// composite, for subscribers that opt into intercepted input (spec.md
// §4.5's All/GamepadOnly routing). Grounded on the Export/Emit usage in
// other_examples' nya3jp-tast-tests bluez agent.go, adapted from a method
// delegate to a signal emitter.
package bustgt

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

const signalInterface = "org.inputplumber.Composite.Device"
const signalName = "CapabilityEvent"

// Target publishes capability events as a signal on conn at path. Delivery
// is non-blocking: if Emit fails (e.g. no subscriber matched the signal
// rule) the event is dropped silently, matching spec.md §4.5 "this is the
// intended behavior so no queue fills up".
type Target struct {
	log  *zap.Logger
	conn *dbus.Conn
	path dbus.ObjectPath
}

func New(log *zap.Logger, conn *dbus.Conn, path dbus.ObjectPath) *Target {
	return &Target{log: log.With(zap.String("target", string(path))), conn: conn, path: path}
}

// Run consumes capability events from in until ctx is cancelled or in
// closes, emitting each as a CapabilityEvent signal.
func (t *Target) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			t.publish(ev)
		}
	}
}

func (t *Target) publish(ev nativeevent.CapabilityEvent) {
	if t.conn == nil {
		return
	}
	name := capabilityName(ev.Capability)
	if err := t.conn.Emit(t.path, fmt.Sprintf("%s.%s", signalInterface, signalName), name, ev.Value, ev.Timestamp.UnixNano()); err != nil {
		t.log.Debug("bus emit dropped", zap.Error(err))
	}
}

func capabilityName(c capability.Capability) string {
	return c.String()
}
