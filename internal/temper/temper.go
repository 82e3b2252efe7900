package temper

import (
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/temper-core/internal/infrastructure/logging"
	"github.com/nerrad567/temper-core/internal/sensor"
	"github.com/nerrad567/temper-core/internal/usb"
)

// DefaultTTL is the registry staleness threshold: a snapshot older than
// this is rebuilt before answering.
const DefaultTTL = 60 * time.Second

// deviceReader abstracts the protocol decoder so tests can observe and
// stub physical reads. *sensor.Decoder satisfies it.
type deviceReader interface {
	Read(device string) (sensor.Reading, error)
}

// Options configures a Temper instance.
type Options struct {
	// Scanner walks the USB topology. Nil uses a default-root scanner.
	Scanner *usb.Scanner

	// Decoder performs the per-device protocol exchange. Nil uses a zero
	// Decoder (devices under /dev, no tracing).
	Decoder deviceReader

	// Forced replaces the built-in known-id set with exactly one pair.
	Forced *ID

	// TTL overrides the registry staleness threshold. Zero means DefaultTTL.
	TTL time.Duration

	Logger *logging.Logger
}

// Temper owns the device registry snapshot and orchestrates acquisition.
//
// All methods serialise through one exclusive lock: registry reads,
// registry refreshes, and the physical device I/O performed while
// acquiring readings. This is a deliberate global critical section —
// concurrent HID or serial exchanges against the same kernel device are
// unsafe, so concurrent callers queue instead of interleaving.
type Temper struct {
	scanner *usb.Scanner
	decoder deviceReader
	forced  *ID
	ttl     time.Duration
	logger  *logging.Logger

	mu       sync.Mutex
	devices  map[string]usb.Device
	lastScan time.Time
}

// New creates a Temper and performs the initial topology scan.
func New(opts Options) *Temper {
	scanner := opts.Scanner
	if scanner == nil {
		scanner = &usb.Scanner{}
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = &sensor.Decoder{}
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	t := &Temper{
		scanner: scanner,
		decoder: decoder,
		forced:  opts.Forced,
		ttl:     ttl,
		logger:  logger,
	}
	t.mu.Lock()
	t.rescanLocked()
	t.mu.Unlock()
	return t
}

// IsKnownID reports whether the pair is in the known-id set (or matches
// the forced override, which replaces the built-in set entirely).
func (t *Temper) IsKnownID(vendor, product uint16) bool {
	if t.forced != nil {
		return *t.forced == ID{Vendor: vendor, Product: product}
	}
	_, ok := builtinIDs[ID{Vendor: vendor, Product: product}]
	return ok
}

// rescanLocked rebuilds the registry wholesale from a fresh topology scan.
// Callers hold t.mu.
func (t *Temper) rescanLocked() {
	t.devices = t.scanner.Scan()
	t.lastScan = time.Now()
	t.logger.Debug("usb topology scanned", "devices", len(t.devices))
}

// maybeRescanLocked rebuilds the registry when the snapshot has gone
// stale. Callers hold t.mu.
func (t *Temper) maybeRescanLocked() {
	if time.Since(t.lastScan) > t.ttl {
		t.rescanLocked()
	}
}

// Rescan forces an immediate registry rebuild.
func (t *Temper) Rescan() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rescanLocked()
}

// sortedLocked returns the registry entries ordered by bus number then
// device number, the stable report order. Callers hold t.mu.
func (t *Temper) sortedLocked() []usb.Device {
	devices := make([]usb.Device, 0, len(t.devices))
	for _, d := range t.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].SortKey() != devices[j].SortKey() {
			return devices[i].SortKey() < devices[j].SortKey()
		}
		return devices[i].Path < devices[j].Path
	})
	return devices
}

// AllDevices returns every discovered USB device in report order,
// recognised or not. Used by the --list surface.
func (t *Temper) AllDevices() []usb.Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedLocked()
}

// KnownDevices returns the recognised-id devices in report order, without
// performing any device I/O. Refreshes a stale registry first.
func (t *Temper) KnownDevices() []usb.Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeRescanLocked()

	var known []usb.Device
	for _, d := range t.sortedLocked() {
		if t.IsKnownID(d.VendorID, d.ProductID) {
			known = append(known, d)
		}
	}
	return known
}

// HasDevice reports whether a recognised device with the given ids is on
// the bus. Used for HEAD probes: an existence decision only, no I/O.
func (t *Temper) HasDevice(vendor, product uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsKnownID(vendor, product) {
		return false
	}
	for _, d := range t.devices {
		if d.VendorID == vendor && d.ProductID == product {
			return true
		}
	}
	return false
}

// ReadAll acquires a reading from every recognised device in report order.
//
// The registry is refreshed first if stale. If a device node vanished
// between scan and open, the registry is rebuilt once and the whole
// acquisition retried; a second failure returns whatever results the
// retry produced.
func (t *Temper) ReadAll() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeRescanLocked()

	results, err := t.readAllLocked()
	if err != nil {
		t.logger.Warn("device vanished during acquisition, rescanning", "error", err)
		t.rescanLocked()
		results, err = t.readAllLocked()
		if err != nil {
			t.logger.Error("acquisition failed after rescan", "error", err)
		}
	}
	return results
}

// readAllLocked runs one acquisition pass. Per-device protocol failures
// land in the result's error field and never stop the batch; a vanished
// device node aborts the pass with an error so the caller can rescan.
// Callers hold t.mu.
func (t *Temper) readAllLocked() ([]Result, error) {
	var results []Result
	for _, d := range t.sortedLocked() {
		if !t.IsKnownID(d.VendorID, d.ProductID) {
			continue
		}
		if len(d.Interfaces) == 0 {
			results = append(results, Result{
				Device:  d,
				Reading: sensor.Reading{Error: errMsgNoInterfaces},
			})
			continue
		}

		// The last (lexicographically greatest) interface is the one
		// wired to the sensor protocol.
		leaf := d.Interfaces[len(d.Interfaces)-1]
		reading, err := t.decoder.Read(leaf)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return results, err
			}
			// Other transport failures stay with this device.
			reading = sensor.Reading{Error: err.Error()}
		}
		results = append(results, Result{Device: d, Reading: reading})
	}
	return results, nil
}

// ReadDevice acquires a reading from the first recognised device matching
// the ids. Returns ok=false when no such device is known, when it is off
// the bus, or when its node vanished mid-read (after scheduling a registry
// refresh) — the three cases are deliberately indistinguishable.
func (t *Temper) ReadDevice(vendor, product uint16) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsKnownID(vendor, product) {
		t.maybeRescanLocked()
		return Result{}, false
	}

	for _, d := range t.sortedLocked() {
		if d.VendorID != vendor || d.ProductID != product {
			continue
		}
		if len(d.Interfaces) == 0 {
			return Result{
				Device:  d,
				Reading: sensor.Reading{Error: errMsgNoInterfaces},
			}, true
		}

		leaf := d.Interfaces[len(d.Interfaces)-1]
		reading, err := t.decoder.Read(leaf)
		if err != nil {
			t.logger.Warn("single-device read failed", "device", leaf, "error", err)
			t.maybeRescanLocked()
			return Result{}, false
		}
		return Result{Device: d, Reading: reading}, true
	}

	t.maybeRescanLocked()
	return Result{}, false
}

// LastScan returns the timestamp of the registry snapshot currently served.
func (t *Temper) LastScan() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastScan
}
