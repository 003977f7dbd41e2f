// Package transport defines the capability contract every board channel
// implements.
//
// A Channel enumerates raw Endpoints and connects to them; a Session is the
// per-board handle the reconciler and the sync orchestrator work through.
// The concrete variants live in sub-packages:
//
//   - usb: boards mounted as mass storage (CIRCUITPY drives)
//   - web: boards exposing the HTTP file service on the local network
//   - ble: reserved, enumerates no devices
//
// Paths passed to a Session are absolute on the board filesystem and use
// forward slashes ("/lib/neopixel.mpy"). Directory paths may carry a
// trailing slash.
package transport
