package temper

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/temper-core/internal/sensor"
	"github.com/nerrad567/temper-core/internal/usb"
)

// sysfsFixture builds a fake sysfs root for the scanner.
type sysfsFixture struct {
	t    *testing.T
	root string
}

func newSysfsFixture(t *testing.T) *sysfsFixture {
	t.Helper()
	return &sysfsFixture{t: t, root: t.TempDir()}
}

// addDevice lays out one device directory with identity attributes and the
// given leaf interface names.
func (f *sysfsFixture) addDevice(name string, vendor, product uint16, bus, dev int, leaves ...string) {
	f.t.Helper()
	dir := filepath.Join(f.root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		f.t.Fatal(err)
	}
	attrs := map[string]string{
		"idVendor":  fmt.Sprintf("%04x", vendor),
		"idProduct": fmt.Sprintf("%04x", product),
		"busnum":    fmt.Sprintf("%d", bus),
		"devnum":    fmt.Sprintf("%d", dev),
		"product":   "TEMPer test device",
	}
	for attr, value := range attrs {
		if err := os.WriteFile(filepath.Join(dir, attr), []byte(value+"\n"), 0644); err != nil {
			f.t.Fatal(err)
		}
	}
	for _, leaf := range leaves {
		if err := os.MkdirAll(filepath.Join(dir, "iface", leaf), 0755); err != nil {
			f.t.Fatal(err)
		}
	}
}

func (f *sysfsFixture) removeDevice(name string) {
	f.t.Helper()
	if err := os.RemoveAll(filepath.Join(f.root, name)); err != nil {
		f.t.Fatal(err)
	}
}

func (f *sysfsFixture) scanner() *usb.Scanner {
	return &usb.Scanner{Root: f.root}
}

// stubDecoder records which leaves were read and plays back scripted
// readings or errors.
type stubDecoder struct {
	mu       sync.Mutex
	calls    []string
	readings map[string]sensor.Reading
	errs     map[string]error
	delay    time.Duration
	spans    [][2]time.Time
}

func (s *stubDecoder) Read(device string) (sensor.Reading, error) {
	start := time.Now()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, device)
	s.spans = append(s.spans, [2]time.Time{start, time.Now()})

	if err, ok := s.errs[device]; ok && err != nil {
		return sensor.Reading{}, err
	}
	if r, ok := s.readings[device]; ok {
		return r, nil
	}
	return sensor.Reading{Firmware: "TEMPerGold_V3.1"}, nil
}

func TestReadAll_SkipsUnknownIDs(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")
	fx.addDevice("1-2", 0xdead, 0xbeef, 1, 3, "hidraw1") // not a sensor

	dec := &stubDecoder{}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	results := tm.ReadAll()
	if len(results) != 1 {
		t.Fatalf("ReadAll() returned %d results, want 1", len(results))
	}
	if results[0].VendorID != 0x0c45 {
		t.Errorf("vendorid = %04x, want 0c45", results[0].VendorID)
	}
	for _, call := range dec.calls {
		if call == "hidraw1" {
			t.Error("unknown-id device must never reach the decoder")
		}
	}
}

func TestReadAll_OrderedByBusThenDevice(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("2-9", 0x0c45, 0x7401, 2, 9, "hidraw2")
	fx.addDevice("1-5", 0x413d, 0x2107, 1, 5, "hidraw1")
	fx.addDevice("1-2", 0x1a86, 0x5523, 1, 2, "ttyUSB0")

	tm := New(Options{Scanner: fx.scanner(), Decoder: &stubDecoder{}})

	results := tm.ReadAll()
	if len(results) != 3 {
		t.Fatalf("ReadAll() returned %d results, want 3", len(results))
	}
	var keys []int
	for _, r := range results {
		keys = append(keys, r.SortKey())
	}
	if keys[0] != 1002 || keys[1] != 1005 || keys[2] != 2009 {
		t.Errorf("result order = %v, want ascending bus*1000+dev", keys)
	}
}

func TestReadAll_NoInterfacesYieldsErrorWithoutDispatch(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2) // no leaves

	dec := &stubDecoder{}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	results := tm.ReadAll()
	if len(results) != 1 {
		t.Fatalf("ReadAll() returned %d results, want 1", len(results))
	}
	if results[0].Error != errMsgNoInterfaces {
		t.Errorf("error = %q, want %q", results[0].Error, errMsgNoInterfaces)
	}
	if len(dec.calls) != 0 {
		t.Errorf("decoder calls = %v, want none", dec.calls)
	}
}

func TestReadAll_UsesLastInterface(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x413d, 0x2107, 1, 2, "hidraw0", "hidraw1")

	dec := &stubDecoder{}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	tm.ReadAll()
	if len(dec.calls) != 1 || dec.calls[0] != "hidraw1" {
		t.Errorf("decoder calls = %v, want [hidraw1]", dec.calls)
	}
}

func TestReadAll_PerDeviceErrorsDoNotAbortBatch(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")
	fx.addDevice("1-3", 0x413d, 0x2107, 1, 3, "hidraw1")

	dec := &stubDecoder{
		readings: map[string]sensor.Reading{
			"hidraw0": {Error: "Cannot read device firmware identifier"},
			"hidraw1": {Firmware: "TEMPerX_V3.1"},
		},
	}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	results := tm.ReadAll()
	if len(results) != 2 {
		t.Fatalf("ReadAll() returned %d results, want 2", len(results))
	}
	if results[0].Error == "" {
		t.Error("first device should carry its protocol error")
	}
	if results[1].Firmware != "TEMPerX_V3.1" {
		t.Error("second device should still have been read")
	}
}

func TestReadAll_VanishedDeviceTriggersRescanAndRetry(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")

	dec := &stubDecoder{
		errs: map[string]error{
			"hidraw0": fmt.Errorf("opening hidraw device hidraw0: %w", fs.ErrNotExist),
		},
	}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	// Unplug the device, then make the retry find a healthy replacement.
	before := tm.LastScan()
	fx.removeDevice("1-1")
	fx.addDevice("1-4", 0x413d, 0x2107, 1, 4, "hidraw3")

	results := tm.ReadAll()

	if !tm.LastScan().After(before) {
		t.Error("vanished device must force a registry rescan")
	}
	if len(results) != 1 || results[0].VendorID != 0x413d {
		t.Errorf("results = %+v, want the rescanned device only", results)
	}
}

func TestRescan_IsWholesale(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")

	tm := New(Options{Scanner: fx.scanner(), Decoder: &stubDecoder{}})
	if !tm.HasDevice(0x0c45, 0x7401) {
		t.Fatal("device should be present after initial scan")
	}

	fx.removeDevice("1-1")
	tm.Rescan()

	if tm.HasDevice(0x0c45, 0x7401) {
		t.Error("unplugged device must not survive a refresh")
	}
}

func TestTTL_StaleRegistryIsRebuilt(t *testing.T) {
	fx := newSysfsFixture(t)
	tm := New(Options{Scanner: fx.scanner(), Decoder: &stubDecoder{}, TTL: time.Millisecond})

	fx.addDevice("1-1", 0x1a86, 0xe025, 1, 2, "ttyUSB0")
	time.Sleep(5 * time.Millisecond)

	if len(tm.KnownDevices()) != 1 {
		t.Error("stale registry should have been rebuilt before answering")
	}
}

func TestForcedID_ReplacesBuiltinSet(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0") // built-in id
	fx.addDevice("1-3", 0xdead, 0xbeef, 1, 3, "hidraw1") // forced id

	forced := ID{Vendor: 0xdead, Product: 0xbeef}
	tm := New(Options{Scanner: fx.scanner(), Decoder: &stubDecoder{}, Forced: &forced})

	results := tm.ReadAll()
	if len(results) != 1 || results[0].VendorID != 0xdead {
		t.Errorf("forced id must replace the built-in set entirely, got %+v", results)
	}
	if tm.IsKnownID(0x0c45, 0x7401) {
		t.Error("built-in ids must not be known under a forced override")
	}
}

func TestReadDevice(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")

	tm := New(Options{Scanner: fx.scanner(), Decoder: &stubDecoder{}})

	t.Run("present", func(t *testing.T) {
		r, ok := tm.ReadDevice(0x0c45, 0x7401)
		if !ok {
			t.Fatal("ReadDevice() = false, want reading")
		}
		if r.Firmware == "" {
			t.Error("reading should carry firmware id")
		}
	})

	t.Run("known id off the bus", func(t *testing.T) {
		if _, ok := tm.ReadDevice(0x413d, 0x2107); ok {
			t.Error("ReadDevice() = true for a device that is not plugged in")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, ok := tm.ReadDevice(0xdead, 0xbeef); ok {
			t.Error("ReadDevice() = true for an unknown id")
		}
	})
}

func TestConcurrentAcquisitionNeverInterleavesDeviceIO(t *testing.T) {
	fx := newSysfsFixture(t)
	fx.addDevice("1-1", 0x0c45, 0x7401, 1, 2, "hidraw0")
	fx.addDevice("1-3", 0x413d, 0x2107, 1, 3, "hidraw1")

	dec := &stubDecoder{delay: 2 * time.Millisecond}
	tm := New(Options{Scanner: fx.scanner(), Decoder: dec})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tm.ReadAll()
			} else {
				tm.ReadDevice(0x0c45, 0x7401)
			}
		}(i)
	}
	wg.Wait()

	dec.mu.Lock()
	defer dec.mu.Unlock()
	for i := 1; i < len(dec.spans); i++ {
		prev, cur := dec.spans[i-1], dec.spans[i]
		if cur[0].Before(prev[1]) {
			t.Fatalf("device reads overlap: read %d started at %v before read %d ended at %v",
				i, cur[0], i-1, prev[1])
		}
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    ID
		wantErr bool
	}{
		{"0c45:7401", ID{0x0c45, 0x7401}, false},
		{"413D:2107", ID{0x413d, 0x2107}, false},
		{"0c457401", ID{}, true},
		{"0c45:7401:extra", ID{}, true},
		{"zz:7401", ID{}, true},
		{"0c45:zz", ID{}, true},
		{"", ID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
