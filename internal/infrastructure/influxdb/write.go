package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/temper-core/internal/temper"
)

// measurementReadings is the measurement name for sensor readings.
const measurementReadings = "temper_readings"

// WriteReading writes one sensor reading to InfluxDB.
//
// The point is tagged with the sensor's vendor and product ids (decimal,
// matching the HTTP routes) and carries a field per present channel.
// Readings with no channels at all (a failed acquisition) are skipped.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteReading(r temper.Filtered) {
	if !c.IsConnected() {
		return
	}

	point := readingPoint(r, time.Now())
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}

// WriteReadings writes a batch of readings.
func (c *Client) WriteReadings(readings []temper.Filtered) {
	for _, r := range readings {
		c.WriteReading(r)
	}
}

// readingPoint builds the point for a reading, or nil when the reading
// carries no channel data worth recording.
func readingPoint(r temper.Filtered, ts time.Time) *write.Point {
	fields := make(map[string]interface{})
	if r.InternalTemperatureC != nil {
		fields["internal_temperature_c"] = *r.InternalTemperatureC
	}
	if r.InternalHumidityPct != nil {
		fields["internal_humidity_pct"] = *r.InternalHumidityPct
	}
	if r.ExternalTemperatureC != nil {
		fields["external_temperature_c"] = *r.ExternalTemperatureC
	}
	if r.ExternalHumidityPct != nil {
		fields["external_humidity_pct"] = *r.ExternalHumidityPct
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{
		"vendorid":  strconv.Itoa(int(r.VendorID)),
		"productid": strconv.Itoa(int(r.ProductID)),
	}
	if r.Product != "" {
		tags["product"] = r.Product
	}

	return write.NewPoint(measurementReadings, tags, fields, ts)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the reading helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
