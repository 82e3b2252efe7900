// Package config loads and validates the temper service configuration.
//
// The configuration file is the document handed to --server: a JSON object
// with "hostname", an optional "port" and optional "certfile"/"keyfile"
// entries for TLS termination. Because JSON parses as YAML, the same loader
// accepts a YAML rendition of the document, and the optional sections
// (logging, poll, mqtt, influxdb) follow the usual YAML conventions.
//
// Defaults depend on TLS: port 443 and the https scheme when a certfile is
// present, port 80 and http otherwise.
//
// Secrets (MQTT credentials, InfluxDB token) can be supplied via TEMPER_*
// environment variables instead of the file.
package config
