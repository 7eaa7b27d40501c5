// Package iiosrc implements the IIO sensor source decoder (C1, spec.md
// §4.2): it polls an accelerometer or gyroscope's sysfs raw-value files at a
// fixed sampling frequency, applies an optional 3x3 mount matrix and
// deadzone, and emits one capability event per axis. There is no IIO
// reference in the retrieval pack, so this is grounded on the same
// poll-and-emit shape as internal/source/evdevsrc, adapted from reading a
// character device to reading sysfs scalar attribute files.
package iiosrc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// MountMatrix is the 3x3 orientation-correction matrix applied to a raw
// (x,y,z) sample before it is emitted, per spec.md §4.2 "an optional 3x3
// mount matrix".
type MountMatrix [3][3]float64

// Identity is the default mount matrix: no correction.
var Identity = MountMatrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (m MountMatrix) apply(x, y, z float64) (float64, float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z
}

// Kind distinguishes the capability family a sample becomes (spec.md §4.2:
// IIO sources are grouped as imu for accelerometer/gyro devices).
type Kind int

const (
	KindAccel Kind = iota
	KindGyro
)

// Source polls one IIO device directory (e.g. /sys/bus/iio/devices/iio:device0)
// for raw axis values, scales them by the device's declared scale factor and
// mount matrix, and emits capability events.
type Source struct {
	dir      string
	kind     Kind
	imu      capability.ImuName
	scale    float64
	matrix   MountMatrix
	interval time.Duration
	deadzone float64
	frame    uint64
}

// Open reads the device's scale and sampling_frequency attributes once
// (spec.md §4.2 "opens ... with a sampling frequency") and prepares a
// Source that will poll at that rate. imu identifies which physical IMU
// instance this sensor backs (spec.md §3 "multiple IMUs are possible").
func Open(dir string, kind Kind, imu capability.ImuName, matrix MountMatrix, deadzone float64) (*Source, error) {
	axisPrefix := axisPrefixFor(kind)
	scale, err := readFloat(dir + "/" + axisPrefix + "_scale")
	if err != nil {
		scale = 1.0
	}
	freq, err := readFloat(dir + "/sampling_frequency")
	if err != nil || freq <= 0 {
		freq = 100.0
	}
	return &Source{
		dir:      dir,
		kind:     kind,
		imu:      imu,
		scale:    scale,
		matrix:   matrix,
		interval: time.Duration(float64(time.Second) / freq),
		deadzone: deadzone,
	}, nil
}

func axisPrefixFor(k Kind) string {
	if k == KindGyro {
		return "in_anglvel"
	}
	return "in_accel"
}

// Run polls the raw axis files on a ticker until ctx is cancelled, emitting
// three capability events per sample (x/y/z) after the matrix multiply and
// deadzone check (spec.md §4.2).
func (s *Source) Run(ctx context.Context, out chan<- nativeevent.CapabilityEvent) error {
	prefix := axisPrefixFor(s.kind)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			x, errX := readFloat(fmt.Sprintf("%s/%s_x_raw", s.dir, prefix))
			y, errY := readFloat(fmt.Sprintf("%s/%s_y_raw", s.dir, prefix))
			z, errZ := readFloat(fmt.Sprintf("%s/%s_z_raw", s.dir, prefix))
			if errX != nil || errY != nil || errZ != nil {
				continue
			}
			s.frame++
			s.emitSample(x*s.scale, y*s.scale, z*s.scale, out)
		}
	}
}

func (s *Source) emitSample(x, y, z float64, out chan<- nativeevent.CapabilityEvent) {
	x, y, z = s.matrix.apply(x, y, z)
	now := time.Now()
	newCap := capability.GamepadAccelerometer
	if s.kind == KindGyro {
		newCap = capability.GamepadGyro
	}
	emit := func(axis capability.ImuAxis, v float64) {
		v = nativeevent.ApplyDeadzone(v, s.deadzone)
		c := newCap(s.imu, axis, capability.DirectionNone, s.deadzone)
		out <- nativeevent.CapabilityEvent{Capability: c, Value: v, Timestamp: now, SyncFrame: s.frame}
	}
	emit(capability.ImuAxisPitch, x)
	emit(capability.ImuAxisRoll, y)
	emit(capability.ImuAxisYaw, z)
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}
