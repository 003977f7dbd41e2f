package modver

import (
	"fmt"
	"regexp"
)

// compiledMagic is the first byte of every compiled module.
const compiledMagic = 'C'

// ExpectedEpoch returns the compiled-module format byte the given firmware
// major version loads. Firmware 7 and 8 share format 5; 9 moved to 6.
func ExpectedEpoch(firmwareMajor int) byte {
	switch {
	case firmwareMajor >= 9:
		return 6
	case firmwareMajor >= 7:
		return 5
	default:
		return 3
	}
}

// SniffCompiledHeader checks the two-byte header of a compiled module
// against the firmware major version. It returns ErrBadBinaryFormat when the
// magic or the format epoch does not match.
func SniffCompiledHeader(data []byte, firmwareMajor int) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: %d byte header", ErrBadBinaryFormat, len(data))
	}
	if data[0] != compiledMagic {
		return fmt.Errorf("%w: magic %#02x", ErrBadBinaryFormat, data[0])
	}
	if want := ExpectedEpoch(firmwareMajor); data[1] != want {
		return fmt.Errorf("%w: format %d, firmware %d expects %d", ErrBadBinaryFormat, data[1], firmwareMajor, want)
	}
	return nil
}

// FileKind selects the version-tag pattern.
type FileKind int

const (
	// Source is a plain .py file.
	Source FileKind = iota
	// Compiled is a .mpy file.
	Compiled
)

var (
	sourceTag   = regexp.MustCompile(`__version__.+?(\d+\.\d+\.\d+)`)
	compiledTag = regexp.MustCompile(`(\d+\.\d+\.\d+).+?__version__`)
)

// ExtractVersionTag finds the version literal next to the __version__
// marker. It reports false when no tag is present, which callers treat as
// an invalid file rather than a parse error.
func ExtractVersionTag(data []byte, kind FileKind) (string, bool) {
	re := sourceTag
	if kind == Compiled {
		re = compiledTag
	}
	m := re.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}
