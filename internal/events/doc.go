// Package events defines the notifications Board Sync Core emits while it
// discovers boards and synchronises their libraries.
//
// Producers (the board registry and the sync orchestrator) publish Event
// values to a Sink. The process wires a Multi sink that fans out to the
// WebSocket hub, MQTT and InfluxDB; tests use a Recorder.
//
// Sinks must not block: Publish is called from discovery and sync
// goroutines.
package events
