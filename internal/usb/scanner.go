package usb

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultRoot is the sysfs hierarchy enumerating USB devices on Linux.
const DefaultRoot = "/sys/bus/usb/devices"

// Device describes one USB device found during a scan, together with the
// character-device leaf names (hidraw or tty) exposed under its subtree.
//
// A Device is immutable once constructed; every scan builds fresh values.
type Device struct {
	// Path is the sysfs directory the device was read from.
	Path string `json:"-"`

	VendorID     uint16 `json:"vendorid"`
	ProductID    uint16 `json:"productid"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	BusNum       uint16 `json:"busnum"`
	DevNum       uint16 `json:"devnum"`

	// Interfaces is the sorted, deduplicated set of hidraw/tty leaf names
	// found under the device's subtree.
	Interfaces []string `json:"devices"`
}

// SortKey orders devices by bus number, then device number. Matches the
// report ordering used by the acquisition layer.
func (d Device) SortKey() int {
	return int(d.BusNum)*1000 + int(d.DevNum)
}

// Leaf character-device name patterns. The tty pattern is deliberately
// loose: it matches ttyUSB0, ttyACM3 and bare tty1 alike.
var (
	ttyPattern    = regexp.MustCompile(`tty.*[0-9]`)
	hidrawPattern = regexp.MustCompile(`hidraw[0-9]`)
)

// Scanner walks a sysfs-style hierarchy and builds the device topology.
//
// The zero value scans DefaultRoot; Root is overridable for tests.
type Scanner struct {
	Root string
}

// Scan walks the hierarchy and returns all USB devices keyed by sysfs path.
//
// Each immediate child directory of the root is examined for the well-known
// identity attribute files. A directory without a parseable idVendor is not
// a USB device and is skipped. Attribute read failures are treated as
// absent values, never as scan failures: Scan is a pure function of the
// on-disk state and always returns a map.
func (s *Scanner) Scan() map[string]Device {
	root := s.Root
	if root == "" {
		root = DefaultRoot
	}

	devices := make(map[string]Device)

	entries, err := os.ReadDir(root)
	if err != nil {
		return devices
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())

		// Top-level entries are typically symlinks into /sys/devices;
		// follow them.
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}

		if dev, ok := readDevice(path); ok {
			devices[path] = dev
		}
	}

	return devices
}

// readDevice reads the identity attributes for one device directory.
// Returns ok=false when the directory lacks a parseable idVendor.
func readDevice(dir string) (Device, bool) {
	vendor, ok := parseHexAttr(readAttr(filepath.Join(dir, "idVendor")))
	if !ok {
		return Device{}, false
	}

	product, _ := parseHexAttr(readAttr(filepath.Join(dir, "idProduct")))
	busnum, _ := parseDecAttr(readAttr(filepath.Join(dir, "busnum")))
	devnum, _ := parseDecAttr(readAttr(filepath.Join(dir, "devnum")))

	return Device{
		Path:         dir,
		VendorID:     vendor,
		ProductID:    product,
		Manufacturer: readAttr(filepath.Join(dir, "manufacturer")),
		Product:      readAttr(filepath.Join(dir, "product")),
		BusNum:       busnum,
		DevNum:       devnum,
		Interfaces:   findLeafDevices(dir),
	}, true
}

// readAttr reads a sysfs attribute file and returns its trimmed contents.
// Missing or unreadable attributes yield the empty string.
func readAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// parseHexAttr parses a hexadecimal sysfs id attribute (idVendor, idProduct).
func parseHexAttr(s string) (uint16, bool) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// parseDecAttr parses a decimal sysfs attribute (busnum, devnum).
func parseDecAttr(s string) (uint16, bool) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// findLeafDevices recursively collects hidraw/tty leaf names under dir.
// Symlinked directories are not followed; sysfs subtrees link back into
// themselves. Results are deduplicated and sorted for deterministic order.
func findLeafDevices(dir string) []string {
	set := make(map[string]struct{})
	collectLeafDevices(dir, set)

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectLeafDevices(dir string, set map[string]struct{}) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		// DirEntry.IsDir is false for symlinks, which keeps the walk
		// from following them.
		if entry.IsDir() {
			collectLeafDevices(filepath.Join(dir, entry.Name()), set)
		}
		name := entry.Name()
		if ttyPattern.MatchString(name) || hidrawPattern.MatchString(name) {
			set[name] = struct{}{}
		}
	}
}
