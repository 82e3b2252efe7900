package temper

import "fmt"

// Filtered is the projection of a Result served to network clients. Bus
// topology (bus/device numbers, sysfs paths, raw hex) is deliberately
// withheld; the stable per-device URL is synthesised instead so callers
// can re-query a single sensor.
type Filtered struct {
	VendorID     uint16 `json:"vendorid"`
	ProductID    uint16 `json:"productid"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`

	InternalTemperatureC *float64 `json:"internal temperature,omitempty"`
	InternalHumidityPct  *float64 `json:"internal humidity,omitempty"`
	ExternalTemperatureC *float64 `json:"external temperature,omitempty"`
	ExternalHumidityPct  *float64 `json:"external humidity,omitempty"`

	URL string `json:"url"`
}

// Filtered projects the result for a client, synthesising the device URL
// under baseURL (scheme://host:port). The ids in the URL are decimal,
// matching the single-device route.
func (r Result) Filtered(baseURL string) Filtered {
	return Filtered{
		VendorID:             r.VendorID,
		ProductID:            r.ProductID,
		Manufacturer:         r.Manufacturer,
		Product:              r.Product,
		InternalTemperatureC: r.InternalTemperatureC,
		InternalHumidityPct:  r.InternalHumidityPct,
		ExternalTemperatureC: r.ExternalTemperatureC,
		ExternalHumidityPct:  r.ExternalHumidityPct,
		URL:                  fmt.Sprintf("%s/%d/%d", baseURL, r.VendorID, r.ProductID),
	}
}

// FilterAll projects a batch of results.
func FilterAll(results []Result, baseURL string) []Filtered {
	filtered := make([]Filtered, 0, len(results))
	for _, r := range results {
		filtered = append(filtered, r.Filtered(baseURL))
	}
	return filtered
}
