// Package influxdb provides the optional time-series export for the
// temper service.
//
// The background poller hands each acquired reading batch to this
// package; every present temperature and humidity channel becomes a
// field on a point tagged with the sensor's vendor and product ids.
// Writes are non-blocking and batched by the underlying InfluxDB v2
// client, so a slow or unreachable server never stalls acquisition.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(reading)
package influxdb
