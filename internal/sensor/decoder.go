package sensor

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/nerrad567/temper-core/internal/infrastructure/logging"
)

// errMsgNoUsableDevice is recorded when a candidate interface name is
// neither a hidraw nor a tty node.
const errMsgNoUsableDevice = "No usable hid/tty devices available"

// Decoder reads calibrated values from TEMPer-family sensors over their
// hidraw or serial character devices.
//
// The zero value is usable: devices are opened under /dev and protocol
// tracing is off.
type Decoder struct {
	// DevDir is the directory holding the character devices.
	// Defaults to /dev; tests point it elsewhere.
	DevDir string

	// Logger receives debug-level traces of the raw protocol bytes
	// (the --verbose surface). Nil disables tracing.
	Logger *logging.Logger
}

// Read dispatches to the HID or serial protocol based on the leaf device
// name. A name with neither prefix yields a Reading with only the error
// field set; it is not an I/O failure.
func (d *Decoder) Read(device string) (Reading, error) {
	switch {
	case strings.HasPrefix(device, "hidraw"):
		return d.ReadHID(device)
	case strings.HasPrefix(device, "tty"):
		return d.ReadSerial(device)
	default:
		return Reading{Error: errMsgNoUsableDevice}, nil
	}
}

// devicePath resolves a leaf name to its character-device path.
func (d *Decoder) devicePath(device string) string {
	dir := d.DevDir
	if dir == "" {
		dir = "/dev"
	}
	return filepath.Join(dir, device)
}

// trace logs raw protocol bytes at debug level.
func (d *Decoder) trace(msg string, data []byte) {
	if d.Logger == nil {
		return
	}
	d.Logger.Debug(msg, "hex", hex.EncodeToString(data), "len", len(data))
}
