package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/temper-core/internal/infrastructure/config"
	"github.com/nerrad567/temper-core/internal/temper"
)

func f64ptr(v float64) *float64 { return &v }

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want %v", err, ErrDisabled)
	}
}

func TestReadingPoint(t *testing.T) {
	ts := time.Now()

	t.Run("all channels", func(t *testing.T) {
		p := readingPoint(temper.Filtered{
			VendorID:             0x0c45,
			ProductID:            0x7401,
			Product:              "TEMPer2",
			InternalTemperatureC: f64ptr(21.5),
			InternalHumidityPct:  f64ptr(45.0),
			ExternalTemperatureC: f64ptr(19.0),
		}, ts)
		if p == nil {
			t.Fatal("readingPoint() = nil for a reading with channels")
		}
		if p.Name() != measurementReadings {
			t.Errorf("measurement = %q, want %q", p.Name(), measurementReadings)
		}

		tags := make(map[string]string)
		for _, tag := range p.TagList() {
			tags[tag.Key] = tag.Value
		}
		if tags["vendorid"] != "3141" || tags["productid"] != "29697" {
			t.Errorf("tags = %v, want decimal vendorid/productid", tags)
		}

		fields := make(map[string]interface{})
		for _, f := range p.FieldList() {
			fields[f.Key] = f.Value
		}
		if fields["internal_temperature_c"] != 21.5 {
			t.Errorf("internal_temperature_c = %v, want 21.5", fields["internal_temperature_c"])
		}
		if _, ok := fields["external_humidity_pct"]; ok {
			t.Error("absent channel must not produce a field")
		}
	})

	t.Run("failed acquisition yields no point", func(t *testing.T) {
		p := readingPoint(temper.Filtered{VendorID: 0x0c45, ProductID: 0x7401}, ts)
		if p != nil {
			t.Error("readingPoint() should skip readings with no channel data")
		}
	})
}

func TestDisconnectedWritesAreNoOps(t *testing.T) {
	c := &Client{}
	// Must not panic on the nil write API.
	c.WriteReading(temper.Filtered{InternalTemperatureC: f64ptr(20.0)})
	c.WritePoint("x", nil, map[string]interface{}{"v": 1.0})
	c.Flush()
}
