package sensor

// Reading is the result of one acquisition from a single sensor device.
//
// The temperature and humidity fields are pointers: nil means the device
// did not report that channel (unpopulated sensor, short buffer, or a
// protocol that does not carry it). A Reading is produced fresh per
// acquisition and never cached.
//
// The JSON keys match the wire format served to clients and printed by the
// one-shot --json output.
type Reading struct {
	Firmware string `json:"firmware,omitempty"`

	InternalTemperatureC *float64 `json:"internal temperature,omitempty"`
	InternalHumidityPct  *float64 `json:"internal humidity,omitempty"`
	ExternalTemperatureC *float64 `json:"external temperature,omitempty"`
	ExternalHumidityPct  *float64 `json:"external humidity,omitempty"`

	// Raw protocol bytes, kept for diagnosis. Only the HID path fills
	// these in.
	HexFirmware string `json:"hex_firmware,omitempty"`
	HexData     string `json:"hex_data,omitempty"`

	// Error carries a per-device failure (protocol timeout, unknown
	// firmware). A non-empty Error never aborts a batch acquisition.
	Error string `json:"error,omitempty"`
}

// floatPtr returns a pointer to v. Small helper for the optional fields.
func floatPtr(v float64) *float64 {
	return &v
}
