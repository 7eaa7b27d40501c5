package manager

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NodeKind identifies which of the three kernel device families a discovered
// node belongs to (spec.md §6 "Kernel interfaces").
type NodeKind int

const (
	NodeEvdev NodeKind = iota
	NodeHidraw
	NodeIIO
)

// NodeInfo is the matchable identity of one discovered kernel node, read
// once from sysfs/uevent at discovery time.
type NodeInfo struct {
	Kind NodeKind
	Path string // /dev/input/eventN, /dev/hidraw*, or the iio:deviceN sysfs dir

	Name         string
	VendorID     uint16
	ProductID    uint16
	Handler      string
	PhysPath     string
	InterfaceNum int
	IIOId        string
}

// classifyDevNode identifies which family a /dev node belongs to from its
// basename, per spec.md §6's three device-node globs.
func classifyDevNode(path string) (NodeKind, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "event"):
		return NodeEvdev, true
	case strings.HasPrefix(base, "hidraw"):
		return NodeHidraw, true
	default:
		return 0, false
	}
}

// probeEvdevNode reads the sysfs attributes of an evdev node's input device
// (name, vendor/product, phys path) needed for matching. Best-effort: a
// missing attribute leaves the corresponding field zero.
func probeEvdevNode(devnode string) NodeInfo {
	n := NodeInfo{Kind: NodeEvdev, Path: devnode, Handler: filepath.Base(devnode)}
	sysInput := sysInputDirFor(devnode)
	n.Name = readSysAttr(filepath.Join(sysInput, "..", "name"))
	n.PhysPath = readSysAttr(filepath.Join(sysInput, "..", "phys"))
	n.VendorID = readSysHex(filepath.Join(sysInput, "..", "id", "vendor"))
	n.ProductID = readSysHex(filepath.Join(sysInput, "..", "id", "product"))
	return n
}

// probeHidrawNode reads the HID device backing a hidraw node for its
// vendor/product/name identity via the sysfs "device" symlink chain.
func probeHidrawNode(devnode string) NodeInfo {
	n := NodeInfo{Kind: NodeHidraw, Path: devnode, Handler: filepath.Base(devnode)}
	sysDev := filepath.Join("/sys/class/hidraw", n.Handler, "device")
	uevent := readSysFile(filepath.Join(sysDev, "uevent"))
	for _, line := range strings.Split(uevent, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "HID_NAME":
			n.Name = v
		case "HID_ID":
			// format BUS:VENDOR:PRODUCT, all hex
			parts := strings.Split(v, ":")
			if len(parts) == 3 {
				n.VendorID = parseHex16(parts[1])
				n.ProductID = parseHex16(parts[2])
			}
		}
	}
	return n
}

// probeIIONode reads an IIO device directory's name attribute.
func probeIIONode(dir string) NodeInfo {
	return NodeInfo{
		Kind:  NodeIIO,
		Path:  dir,
		IIOId: filepath.Base(dir),
		Name:  readSysAttr(filepath.Join(dir, "name")),
	}
}

func sysInputDirFor(devnode string) string {
	// /dev/input/eventN -> /sys/class/input/eventN
	return filepath.Join("/sys/class/input", filepath.Base(devnode))
}

func readSysAttr(path string) string {
	return strings.TrimSpace(readSysFile(path))
}

func readSysFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func readSysHex(path string) uint16 {
	return parseHex16(readSysAttr(path))
}

func parseHex16(s string) uint16 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
