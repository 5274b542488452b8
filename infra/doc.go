// Package infra holds the technical adapters: the MQTT advice transport,
// the Prometheus/InfluxDB sinks, the SQLite savings store, Sentry and the
// zerolog logger. These packages depend only on interfaces defined in the
// core packages.
package infra
