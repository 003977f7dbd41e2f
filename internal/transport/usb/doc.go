// Package usb implements the transport capability for boards mounted as
// USB mass storage.
//
// A board volume is any directory directly under a configured mount root that
// carries a boot_out.txt file; CircuitPython rewrites that file on every boot
// with its firmware version, board name, board id and UID. The UID is used
// as the serial number.
//
// Writability is decided by the host: when the board has remounted its own
// filesystem writable, the host sees a read-only volume.
package usb
