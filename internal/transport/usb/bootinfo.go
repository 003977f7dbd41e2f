package usb

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// bootInfoFile is written by the firmware at the root of the volume on boot.
const bootInfoFile = "boot_out.txt"

// bannerPattern matches the first line of boot_out.txt, e.g.
//
//	Adafruit CircuitPython 8.2.6 on 2023-09-12; Adafruit Feather ESP32-S2 TFT with ESP32S2
var bannerPattern = regexp.MustCompile(`CircuitPython (\S+) on [^;]*;\s*(.+?)(?:\s+with\s+\S+)?\s*$`)

// parseBootInfo extracts device metadata from the contents of boot_out.txt.
// Unknown lines are ignored; missing fields stay empty.
func parseBootInfo(data []byte) transport.DeviceInfo {
	var info transport.DeviceInfo

	sc := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first {
			first = false
			if m := bannerPattern.FindStringSubmatch(line); m != nil {
				info.FirmwareVersion = m[1]
				info.BoardName = m[2]
				continue
			}
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Board ID":
			info.BoardID = value
		case "UID":
			info.SerialNumber = value
		}
	}
	return info
}
