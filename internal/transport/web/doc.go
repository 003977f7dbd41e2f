// Package web implements the transport capability for boards running the
// CircuitPython web workflow.
//
// The board serves a small HTTP API:
//
//	GET     /cp/version.json   board metadata (version, board_name, board_id, serial)
//	GET     /cp/devices.json   other boards seen via mDNS on the local network
//	GET     /fs/<dir>/         directory listing (Accept: application/json)
//	GET     /fs/<file>         file contents
//	PUT     /fs/<file>         write file (X-Timestamp: unix milliseconds)
//	PUT     /fs/<dir>/         create directory
//	OPTIONS /fs/               Access-Control-Allow-Methods lists DELETE when writable
//
// File operations use HTTP Basic auth with an empty username by default and
// the password configured in the board's settings.toml.
package web
