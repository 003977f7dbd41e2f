package libsync

import (
	"sort"
	"time"

	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Status is the classification of one module on one board.
type Status string

// Module statuses.
const (
	StatusUpToDate        Status = "up_to_date"
	StatusMissing         Status = "missing"
	StatusInvalidFile     Status = "invalid_file"
	StatusBadBinaryFormat Status = "bad_binary_format"
	StatusMinorUpdate     Status = "minor_update_available"
	StatusMajorUpdate     Status = "major_update_available"
)

// NeedsInstall reports whether the status puts the module in the install
// plan. Bad binaries are excluded; they need an explicit Force.
func (s Status) NeedsInstall() bool {
	return s != StatusUpToDate && s != StatusBadBinaryFormat
}

// ModuleState is one row of a diff.
type ModuleState struct {
	Module bundle.Module `json:"module"`
	Status Status        `json:"status"`
	// BoardVersion is the version tag found on the board, if any.
	BoardVersion string `json:"board_version,omitempty"`
	// Imported marks modules named directly by the roots rather than pulled
	// in as dependencies.
	Imported bool `json:"imported"`
}

// Target is the board a sync operates on.
type Target struct {
	BoardKey      string
	Session       transport.Session
	FirmwareMajor int
}

// Mode selects where a sync takes its root module names from.
type Mode string

// Sync modes.
const (
	ModeProgram   Mode = "program"
	ModeInstalled Mode = "installed"
	ModeExplicit  Mode = "explicit"
)

// DefaultProgram is the program resolved when a request names none.
const DefaultProgram = "code.py"

// Request describes one top-level sync.
type Request struct {
	Mode Mode `json:"mode"`
	// Path is the program for ModeProgram, relative to the drive root.
	Path string `json:"path,omitempty"`
	// Names are the roots for ModeExplicit.
	Names []string `json:"names,omitempty"`
	// Install writes the plan; without it the sync only diffs.
	Install bool `json:"install"`
	// Force lists modules to install even when their status would keep them
	// out of the plan, such as bad_binary_format.
	Force []string `json:"force,omitempty"`
}

// Resolution is the outcome of resolving roots.
type Resolution struct {
	// Roots are catalog modules named by the source.
	Roots []string `json:"roots"`
	// Skipped are names the catalog does not know, typically built-ins.
	Skipped []string `json:"skipped,omitempty"`
}

// InstallResult is the outcome of an install pass.
type InstallResult struct {
	Installed []string         `json:"installed"`
	Failed    map[string]error `json:"-"`
}

// Report is the outcome of Sync.
type Report struct {
	ID       string `json:"id,omitempty"`
	BoardKey string `json:"board_key,omitempty"`
	Mode     Mode   `json:"mode,omitempty"`
	// Ignored is set when another sync was already running.
	Ignored    bool              `json:"ignored"`
	Resolution Resolution        `json:"resolution"`
	Rows       []ModuleState     `json:"rows"`
	Installed  []string          `json:"installed,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Pending returns the rows that are not up to date.
func (r *Report) Pending() []ModuleState {
	var out []ModuleState
	for _, row := range r.Rows {
		if row.Status != StatusUpToDate {
			out = append(out, row)
		}
	}
	return out
}

// Plan returns the names of rows that need installing plus any row named in
// force, sorted.
func Plan(rows []ModuleState, force []string) []string {
	forced := make(map[string]bool, len(force))
	for _, n := range force {
		forced[n] = true
	}
	var out []string
	for _, row := range rows {
		if row.Status.NeedsInstall() || forced[row.Module.Name] {
			out = append(out, row.Module.Name)
		}
	}
	sort.Strings(out)
	return out
}

// RunObserver is notified after every sync that ran.
type RunObserver interface {
	ObserveRun(rep *Report, err error)
}
