// Package hidrawsrc implements the HID-raw source decoder (C1, spec.md
// §4.2): it opens a hidraw node via sstallion/go-hid, slices each incoming
// report into the fields declared in a device's capability map and emits one
// native event per field whose decoded value changed since the previous
// report. Grounded on the hid.OpenPath/Read usage in
// internal/linux/linux_backend.go, and on pkg/bits.Scanner for field
// extraction.
package hidrawsrc

import (
	"context"
	"fmt"
	"time"

	hid "github.com/sstallion/go-hid"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/pkg/bits"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// FieldSpec is one field this decoder watches, lowered from a capmap
// HidrawPredicate; ReportLen is the fixed size of the report it belongs to
// (including the leading report-ID byte when the device uses numbered
// reports), needed to size the read buffer and the Scanner.
type FieldSpec struct {
	capmap.HidrawPredicate
	ReportLen int
}

// Source reads fixed-size HID reports from one hidraw node and decodes the
// subset of fields a composite device's capability map cares about.
type Source struct {
	dev    *hid.Device
	path   string
	fields []FieldSpec
	last   map[int]int32 // field index -> previously decoded raw value
	frame  uint64
}

// Open opens the hidraw node at path and prepares it to decode fields,
// grounded on internal/linux/linux_backend.go's hid.OpenPath call.
func Open(path string, fields []FieldSpec) (*Source, error) {
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("hidrawsrc: open %s: %w", path, err)
	}
	return &Source{dev: dev, path: path, fields: fields, last: make(map[int]int32)}, nil
}

// Run reads reports until ctx is cancelled or the device errs out, decoding
// every changed field and emitting it as a native event. One input report
// read is treated as one sync frame (spec.md §4.2 "Ordering"): HID-raw has
// no EV_SYN equivalent, so every field decoded from the same report shares
// a frame boundary.
func (s *Source) Run(ctx context.Context, out chan<- nativeevent.Event) error {
	defer s.dev.Close()
	maxLen := 0
	for _, f := range s.fields {
		if f.ReportLen > maxLen {
			maxLen = f.ReportLen
		}
	}
	if maxLen == 0 {
		return fmt.Errorf("hidrawsrc: %s: no fields configured", s.path)
	}
	buf := make([]byte, maxLen)
	errCh := make(chan error, 1)
	repCh := make(chan []byte, 8)
	go s.readLoop(buf, repCh, errCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("hidrawsrc: %s: %w", s.path, err)
		case report := <-repCh:
			s.decode(report, out)
		}
	}
}

func (s *Source) readLoop(buf []byte, out chan<- []byte, errCh chan<- error) {
	for {
		n, err := s.dev.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		report := make([]byte, n)
		copy(report, buf[:n])
		out <- report
	}
}

func (s *Source) decode(report []byte, out chan<- nativeevent.Event) {
	s.frame++
	now := time.Now()
	for i, f := range s.fields {
		reportID := uint8(0)
		if len(report) > 0 {
			reportID = report[0]
		}
		if f.ReportID != 0 && f.ReportID != reportID {
			continue
		}
		if f.ByteStart+(f.BitOffset+f.Width+7)/8 > len(report) {
			continue
		}
		raw := decodeField(report, f.HidrawPredicate)
		if prev, ok := s.last[i]; ok && prev == raw {
			continue
		}
		s.last[i] = raw
		out <- capmap.HidrawFieldEvent(f.HidrawPredicate, raw, s.path, now, s.frame)
	}
}

// decodeField slices Width bits out of report starting at ByteStart/BitOffset
// using bits.Scanner, then sign-extends if the field is declared signed.
func decodeField(report []byte, p capmap.HidrawPredicate) int32 {
	scanner := bits.NewScanner(report)
	// Scanner is sequential from offset 0; reposition by discarding a
	// throwaway field covering the skipped prefix, since Scanner exposes no
	// seek primitive.
	skipBits := p.ByteStart*8 + p.BitOffset
	if skipBits > 0 {
		scanner.Next(skipBits)
	}
	field := scanner.Next(p.Width)
	raw := unpackUint(field.Bytes(), p.Width)
	if p.Signed && p.Width < 32 {
		signBit := int32(1) << (p.Width - 1)
		if raw&signBit != 0 {
			raw -= signBit << 1
		}
	}
	return raw
}

// SendOutput writes a raw output report (rumble/LED/haptic) to the device,
// satisfying composite.OutputSink so host->device reports delivered to a
// uhid-backed target (spec.md §4.6) can be relayed back to a physical
// source, grounded on linux_backend.go's hid.Device.Write usage.
func (s *Source) SendOutput(report []byte) error {
	_, err := s.dev.Write(report)
	if err != nil {
		return fmt.Errorf("hidrawsrc: %s: write output report: %w", s.path, err)
	}
	return nil
}

func unpackUint(b []byte, width int) int32 {
	var v uint32
	for i, by := range b {
		v |= uint32(by) << (8 * i)
	}
	if width >= 32 {
		return int32(v)
	}
	mask := uint32(1)<<uint(width) - 1
	return int32(v & mask)
}
