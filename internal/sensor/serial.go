package sensor

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Serial protocol settings: 9600 baud, 8 data bits, no parity, one stop
// bit, no flow control, one second read timeout.
const serialReadTimeout = 1 * time.Second

var serialMode = &serial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// Reply patterns. The inner pattern captures temperature and, after the
// comma, humidity; the outer pattern captures the external probe
// temperature only — serial firmware never reports external humidity.
var (
	innerPattern = regexp.MustCompile(`Temp-Inner:([0-9.]*).*, ?([0-9.]*)`)
	outerPattern = regexp.MustCompile(`Temp-Outer:([0-9.]*)`)
)

// ReadSerial performs the line-oriented serial exchange against the named
// tty leaf device: "Version" for the firmware id, then "ReadTemp" for the
// two-line reading reply.
//
// A reply that matches neither pattern yields a Reading carrying only the
// firmware id — absence of sensor fields is not an error on this path.
func (d *Decoder) ReadSerial(device string) (Reading, error) {
	port, err := serial.Open(d.devicePath(device), serialMode)
	if err != nil {
		return Reading{}, fmt.Errorf("opening serial device %s: %w", device, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		return Reading{}, fmt.Errorf("configuring serial device %s: %w", device, err)
	}

	return d.readSerial(port)
}

// readSerial runs the protocol over an established line connection. Split
// from ReadSerial so tests can drive it with a stub transport.
func (d *Decoder) readSerial(conn io.ReadWriter) (Reading, error) {
	if _, err := conn.Write([]byte("Version")); err != nil {
		return Reading{}, fmt.Errorf("writing version command: %w", err)
	}
	firmware, err := readLine(conn)
	if err != nil {
		return Reading{}, fmt.Errorf("reading version reply: %w", err)
	}

	if _, err := conn.Write([]byte("ReadTemp")); err != nil {
		return Reading{}, fmt.Errorf("writing read command: %w", err)
	}
	first, err := readLine(conn)
	if err != nil {
		return Reading{}, fmt.Errorf("reading temperature reply: %w", err)
	}
	second, err := readLine(conn)
	if err != nil {
		return Reading{}, fmt.Errorf("reading temperature reply: %w", err)
	}
	reply := first + second

	if d.Logger != nil {
		d.Logger.Debug("serial reply", "firmware", firmware, "reply", reply)
	}

	r := Reading{Firmware: firmware}
	parseSerialReply(reply, &r)
	return r, nil
}

// parseSerialReply applies the two independent reply patterns. Captures
// that fail to parse as floats are silently omitted.
func parseSerialReply(reply string, r *Reading) {
	if m := innerPattern.FindStringSubmatch(reply); m != nil {
		temp, terr := strconv.ParseFloat(m[1], 64)
		hum, herr := strconv.ParseFloat(m[2], 64)
		if terr == nil && herr == nil {
			r.InternalTemperatureC = floatPtr(temp)
			r.InternalHumidityPct = floatPtr(hum)
		}
	}
	if m := outerPattern.FindStringSubmatch(reply); m != nil {
		if temp, err := strconv.ParseFloat(m[1], 64); err == nil {
			r.ExternalTemperatureC = floatPtr(temp)
		}
	}
}

// readLine reads bytes until a newline, end of input, or an expired read
// timeout (a zero-byte read), and returns the trimmed line. Mirrors a
// blocking readline over a port with a read timeout: a silent device
// yields an empty line, not an error.
func readLine(r io.Reader) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			line = append(line, buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		if n == 0 {
			break
		}
	}
	return strings.TrimSpace(string(line)), nil
}
