package temper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/temper-core/internal/sensor"
	"github.com/nerrad567/temper-core/internal/usb"
)

// ID is a USB (vendor, product) identifier pair.
type ID struct {
	Vendor  uint16
	Product uint16
}

// String formats the id the way lsusb does.
func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

// ParseID parses a forced-id argument of the form "VENDOR:PRODUCT" with
// both halves in hexadecimal, e.g. "0c45:7401".
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("cannot parse hexadecimal id: %s", s)
	}
	vendor, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return ID{}, fmt.Errorf("cannot parse hexadecimal id: %s", s)
	}
	product, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return ID{}, fmt.Errorf("cannot parse hexadecimal id: %s", s)
	}
	return ID{Vendor: uint16(vendor), Product: uint16(product)}, nil
}

// builtinIDs is the set of (vendor, product) pairs the decoder understands.
// A forced id replaces this set entirely; it is never additive.
var builtinIDs = map[ID]struct{}{
	{0x0c45, 0x7401}: {},
	{0x413d, 0x2107}: {},
	{0x1a86, 0x5523}: {},
	{0x1a86, 0xe025}: {},
}

// errMsgNoInterfaces is recorded for a recognised device exposing no
// hidraw or tty node at all.
const errMsgNoInterfaces = "no hid/tty devices available"

// Result merges a device's bus identity with the reading acquired from it.
// The embedded JSON tags flatten both parts into a single object.
type Result struct {
	usb.Device
	sensor.Reading
}
