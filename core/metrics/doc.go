// Package metrics defines the records emitted by the volunteer engine and the
// sinks that consume them. Sinks like PromSink and InfluxSink live in
// infra/metrics and register themselves with the factory; NewMetricsSink
// returns a MultiSink automatically when several sinks are configured.
package metrics
