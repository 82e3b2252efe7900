package sensor

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// HID protocol constants. Commands and responses are fixed 8-byte frames;
// a response is complete once the device has been idle for the window.
const (
	frameSize = 8

	// firmwareIdleWindow is the per-frame idle window for the firmware
	// query; the data query uses the shorter dataIdleWindow.
	firmwareIdleWindow = 200 * time.Millisecond
	dataIdleWindow     = 100 * time.Millisecond

	// firmwareAttempts bounds the firmware-query retry loop. Devices
	// intermittently return a single partial frame; a full identifier is
	// always longer than one frame.
	firmwareAttempts = 10
)

// Command frames.
var (
	firmwareQuery = []byte{0x01, 0x86, 0xff, 0x01, 0x00, 0x00, 0x00, 0x00}
	dataQuery     = []byte{0x01, 0x80, 0x33, 0x01, 0x00, 0x00, 0x00, 0x00}
)

// errMsgFirmwareTimeout is the per-device error recorded when the firmware
// query never produces a usable identifier.
const errMsgFirmwareTimeout = "Cannot read device firmware identifier"

// frameConn is the transport the HID decoder drives: write a command frame,
// then read response frames until the idle window expires. Production use
// is a hidraw character device; tests substitute a stub.
type frameConn interface {
	Write(p []byte) (int, error)

	// ReadFrame reads one frame, waiting at most idle for data to become
	// ready. Expiry of the idle window is reported as
	// os.ErrDeadlineExceeded.
	ReadFrame(idle time.Duration) ([]byte, error)

	Close() error
}

// hidrawConn adapts an opened hidraw character device to frameConn using
// read deadlines for the idle windows.
type hidrawConn struct {
	f *os.File
}

func openHidraw(path string) (frameConn, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &hidrawConn{f: f}, nil
}

func (c *hidrawConn) Write(p []byte) (int, error) {
	return c.f.Write(p)
}

func (c *hidrawConn) ReadFrame(idle time.Duration) ([]byte, error) {
	if err := c.f.SetReadDeadline(time.Now().Add(idle)); err != nil {
		return nil, err
	}
	buf := make([]byte, frameSize)
	n, err := c.f.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *hidrawConn) Close() error {
	return c.f.Close()
}

// ReadHID performs the HID request/response exchange against the named
// hidraw leaf device and decodes the result.
//
// Per-device protocol failures (unresponsive device, unknown firmware) are
// captured in the Reading's error field. A returned error means the device
// itself could not be used — most importantly, an open failure wrapping
// fs.ErrNotExist when the node vanished between scan and open.
func (d *Decoder) ReadHID(device string) (Reading, error) {
	conn, err := openHidraw(d.devicePath(device))
	if err != nil {
		return Reading{}, fmt.Errorf("opening hidraw device %s: %w", device, err)
	}
	defer conn.Close()

	return d.readHID(conn)
}

// readHID runs the protocol over an established connection. Split from
// ReadHID so tests can drive it with a stub transport.
func (d *Decoder) readHID(conn frameConn) (Reading, error) {
	firmware, err := d.queryFirmware(conn)
	if err != nil {
		return Reading{}, err
	}
	if len(firmware) == 0 || len(firmware) <= frameSize {
		// Never responded, or never delivered a complete identifier
		// within the retry budget.
		r := Reading{Error: errMsgFirmwareTimeout}
		if len(firmware) > 0 {
			r.HexFirmware = hex.EncodeToString(firmware)
		}
		return r, nil
	}

	d.trace("firmware value", firmware)

	if _, err := conn.Write(dataQuery); err != nil {
		return Reading{}, fmt.Errorf("writing data query: %w", err)
	}
	data, err := readFrames(conn, dataIdleWindow)
	if err != nil {
		return Reading{}, fmt.Errorf("reading data response: %w", err)
	}

	d.trace("data value", data)

	id := trimFirmwareID(string(firmware))
	family, id := DetectFamily(id)

	r := Reading{
		Firmware:    id,
		HexFirmware: hex.EncodeToString(firmware),
		HexData:     hex.EncodeToString(data),
	}
	decodeData(family, id, data, &r)
	return r, nil
}

// queryFirmware writes the firmware query and collects the response,
// retrying when the device returns only a partial frame. Returns the
// accumulated bytes of the last attempt; the caller judges completeness.
func (d *Decoder) queryFirmware(conn frameConn) ([]byte, error) {
	d.trace("firmware query", firmwareQuery)

	var firmware []byte
	for attempt := 0; attempt < firmwareAttempts; attempt++ {
		if _, err := conn.Write(firmwareQuery); err != nil {
			return nil, fmt.Errorf("writing firmware query: %w", err)
		}

		var err error
		firmware, err = readFrames(conn, firmwareIdleWindow)
		if err != nil {
			return nil, fmt.Errorf("reading firmware response: %w", err)
		}

		// A completely silent device will not come back; give up now
		// rather than burning the remaining attempts.
		if len(firmware) == 0 {
			return nil, nil
		}
		if len(firmware) > frameSize {
			break
		}
	}
	return firmware, nil
}

// readFrames accumulates response frames until the idle window expires
// with no further data ready.
func readFrames(conn frameConn, idle time.Duration) ([]byte, error) {
	var buf []byte
	for {
		frame, err := conn.ReadFrame(idle)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
		buf = append(buf, frame...)
	}
}

// trimFirmwareID strips trailing whitespace, NULs and other control bytes
// from a raw firmware identifier.
func trimFirmwareID(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r <= 0x20 || r == 0x7f
	})
}
