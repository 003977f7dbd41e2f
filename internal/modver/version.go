package modver

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a parsed major.minor.patch triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String formats the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// canonical returns the "vX.Y.Z" form understood by x/mod/semver.
func (v Version) canonical() string {
	return "v" + v.String()
}

// Compare returns a negative number, zero or a positive number when v is
// older than, equal to or newer than o.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.canonical(), o.canonical())
}

// Parse parses "major[.minor[.patch]][-prerelease]". The pre-release suffix
// is discarded and missing components are zero. Components beyond the third
// are ignored. An empty or non-numeric component yields ErrInvalidVersion, so
// a failed parse is never confused with "0.0.0".
func Parse(s string) (Version, error) {
	core, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	core = strings.TrimPrefix(core, "v")
	if core == "" {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	parts := strings.Split(core, ".")
	var nums [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare compares two version strings component by component. Components
// that are missing or do not parse count as zero, so Compare never fails.
func Compare(a, b string) int {
	return lenient(a).Compare(lenient(b))
}

// SameMajor reports whether two version strings share a major component.
func SameMajor(a, b string) bool {
	return lenient(a).Major == lenient(b).Major
}

// lenient parses each component independently, using zero on failure.
func lenient(s string) Version {
	core, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	parts := strings.Split(strings.TrimPrefix(core, "v"), ".")
	var nums [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		if n, err := strconv.Atoi(parts[i]); err == nil && n >= 0 {
			nums[i] = n
		}
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
}
