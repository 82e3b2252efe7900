package sensor

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Family identifies a recognised firmware protocol family. The firmware id
// string a device returns selects the field offsets and divisors used to
// decode its data buffer.
type Family int

// Recognised firmware families.
const (
	FamilyUnknown Family = iota
	FamilyF14            // TEMPerF1.4: internal temperature only, divisor 256
	FamilyGoldV3         // TEMPerGold_V3.x: internal temperature only, divisor 100
	FamilyXV31           // TEMPerX_V3.1: internal + external channels, divisor 100
	FamilyXV33           // TEMPerX_V3.3: same layout as V3.1
)

// sentinel is the two-byte pattern a device returns in place of a real
// value when a sensor channel is unpopulated.
var sentinel = [2]byte{0x4e, 0x20}

// DetectFamily matches a trimmed firmware id against the known prefixes
// and returns the family together with the normalised id reported to
// callers. The Gold match ignores the trailing version digit.
func DetectFamily(id string) (Family, string) {
	if strings.HasPrefix(id, "TEMPerF1.4") {
		return FamilyF14, id[:10]
	}
	if strings.HasPrefix(id, "TEMPerGold_V3.") {
		return FamilyGoldV3, id[:min(len(id), 15)]
	}
	if strings.HasPrefix(id, "TEMPerX_V3.1") {
		return FamilyXV31, id[:12]
	}
	if strings.HasPrefix(id, "TEMPerX_V3.3") {
		return FamilyXV33, id[:12]
	}
	return FamilyUnknown, id
}

// decodeField reads a 16-bit big-endian signed value at offset and scales
// it by divisor. Returns nil when the buffer is too short or the bytes are
// the no-sensor sentinel: an absent field, not an error.
func decodeField(data []byte, offset int, divisor float64) *float64 {
	if offset < 0 || offset+2 > len(data) {
		return nil
	}
	if data[offset] == sentinel[0] && data[offset+1] == sentinel[1] {
		return nil
	}
	raw := int16(binary.BigEndian.Uint16(data[offset : offset+2]))
	return floatPtr(float64(raw) / divisor)
}

// decodeData populates a Reading's sensor fields from the raw data buffer
// according to the firmware family. Decoding is a pure function of the
// bytes and the family; the same inputs always yield the same Reading.
func decodeData(family Family, id string, data []byte, r *Reading) {
	switch family {
	case FamilyF14:
		r.InternalTemperatureC = decodeField(data, 2, 256.0)
	case FamilyGoldV3:
		r.InternalTemperatureC = decodeField(data, 2, 100.0)
	case FamilyXV31, FamilyXV33:
		r.InternalTemperatureC = decodeField(data, 2, 100.0)
		r.InternalHumidityPct = decodeField(data, 4, 100.0)
		r.ExternalTemperatureC = decodeField(data, 10, 100.0)
		r.ExternalHumidityPct = decodeField(data, 12, 100.0)
	case FamilyUnknown:
		r.Error = fmt.Sprintf("unknown firmware %s: %x", id, data)
	}
}
