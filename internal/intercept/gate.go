// Package intercept implements the Intercept Gate (C4, spec.md §4.5): the
// per-composite state machine that decides, for each capability event,
// whether it flows to target devices, to the bus, or both.
package intercept

import (
	"go.uber.org/atomic"

	"github.com/inputplumber/inputplumber/pkg/capability"
)

// Mode is one of the four intercept states from spec.md §4.5.
type Mode int32

const (
	ModeNone Mode = iota
	ModePass
	ModeAll
	ModeGamepadOnly
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "None"
	case ModePass:
		return "Pass"
	case ModeAll:
		return "All"
	case ModeGamepadOnly:
		return "GamepadOnly"
	default:
		return "Unknown"
	}
}

// Route tells the composite supervisor where one capability event should go.
type Route int

const (
	RouteTargets Route = iota
	RouteBus
	RouteBoth
)

// Cell is the atomically swappable intercept-mode cell shared between the
// composite's single writer (manager or bus handler) and its supervisor
// reader (spec.md §5 "single writer ... multiple readers"). Transitions are
// applied between frames: the supervisor reads the mode once per event, so
// every event after a Set observes the new mode consistently.
type Cell struct {
	mode atomic.Int32
}

// NewCell creates a Cell initialized to None.
func NewCell() *Cell {
	c := &Cell{}
	c.mode.Store(int32(ModeNone))
	return c
}

func (c *Cell) Get() Mode { return Mode(c.mode.Load()) }

func (c *Cell) Set(m Mode) { c.mode.Store(int32(m)) }

// Resolve applies the gate table in spec.md §4.5 to one capability event,
// returning where it should be routed and the mode the cell should hold
// afterward (Guide auto-transitions Pass -> All).
func Resolve(c *Cell, cap capability.Capability) (route Route, nextMode Mode) {
	mode := c.Get()
	isGuide := cap.Kind == capability.KindGamepadButton && cap.Button == capability.ButtonGuide
	isGamepad := cap.IsGamepad()

	switch mode {
	case ModeNone:
		return RouteTargets, mode
	case ModePass:
		if isGamepad && isGuide {
			c.Set(ModeAll)
			return RouteBus, ModeAll
		}
		if isGamepad {
			return RouteTargets, mode
		}
		return RouteTargets, mode
	case ModeAll:
		return RouteBus, mode
	case ModeGamepadOnly:
		if isGamepad {
			return RouteBus, mode
		}
		return RouteTargets, mode
	default:
		return RouteTargets, mode
	}
}
