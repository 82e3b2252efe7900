// Package mqtt provides the optional MQTT publisher for the temper service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained reading publications with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The background poller pushes each acquired reading batch here; every
// sensor gets a retained message under its own topic so late subscribers
// immediately see the last known reading:
//
//	<prefix>/<vendorid>/<productid>  — one retained reading per sensor
//	<prefix>/status                  — online/offline service status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.PublishRetained("temper/3141/29697", payload)
package mqtt
