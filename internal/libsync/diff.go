package libsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/modver"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Diff expands roots over the catalog dependency graph and classifies every
// resulting module against the board. Rows are sorted by module name.
// A dependency missing from the catalog fails the diff with
// bundle.ErrUnknownModule.
func (o *Orchestrator) Diff(ctx context.Context, t Target, roots []string) ([]ModuleState, error) {
	cat, err := o.catalog(ctx, t)
	if err != nil {
		return nil, err
	}

	lib, err := listLib(ctx, t.Session)
	if err != nil {
		return nil, err
	}

	direct := make(map[string]bool, len(roots))
	for _, r := range roots {
		direct[r] = true
	}

	names := cat.ExpandDependencies(roots)
	rows := make([]ModuleState, 0, len(names))
	for _, name := range names {
		m, err := cat.Module(name)
		if err != nil {
			return nil, err
		}
		status, version, err := o.classify(ctx, t, lib, m)
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", name, err)
		}
		rows = append(rows, ModuleState{
			Module:       m,
			Status:       status,
			BoardVersion: version,
			Imported:     direct[name],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Module.Name < rows[j].Module.Name })
	return rows, nil
}

// listLib returns the /lib entries by name; a missing /lib is empty.
func listLib(ctx context.Context, sess transport.Session) (map[string]transport.FileEntry, error) {
	entries, err := sess.List(ctx, transport.Dir(libDir))
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return map[string]transport.FileEntry{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", libDir, err)
	}
	out := make(map[string]transport.FileEntry, len(entries))
	for _, e := range entries {
		out[e.Name] = e
	}
	return out, nil
}

// boardFiles returns the on-board paths that make up module m, or nil when
// it is not installed. A package is its directory's files; a simple module
// is its .py file, else its .mpy file.
func boardFiles(ctx context.Context, sess transport.Session, lib map[string]transport.FileEntry, m bundle.Module) ([]string, error) {
	if m.Package {
		e, ok := lib[m.Name]
		if !ok || !e.IsDir {
			return nil, nil
		}
		dir := transport.Join(libDir, m.Name)
		entries, err := sess.List(ctx, transport.Dir(dir))
		if err != nil {
			if errors.Is(err, transport.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir {
				files = append(files, transport.Join(dir, e.Name))
			}
		}
		sort.Strings(files)
		return files, nil
	}

	for _, ext := range []string{".py", ".mpy"} {
		if e, ok := lib[m.Name+ext]; ok && !e.IsDir {
			return []string{transport.Join(libDir, m.Name+ext)}, nil
		}
	}
	return nil, nil
}

// classify determines the status of module m on the board.
//
// Files are read in order. Any compiled file whose header does not match
// the firmware is a bad binary, regardless of its version tag. The first
// version tag found is the board version.
func (o *Orchestrator) classify(ctx context.Context, t Target, lib map[string]transport.FileEntry, m bundle.Module) (Status, string, error) {
	files, err := boardFiles(ctx, t.Session, lib, m)
	if err != nil {
		return "", "", err
	}

	var (
		version string
		read    int
	)
	for _, p := range files {
		data, err := t.Session.Read(ctx, p)
		if err != nil {
			if errors.Is(err, transport.ErrNotFound) {
				continue
			}
			return "", "", fmt.Errorf("reading %s: %w", p, err)
		}

		kind := modver.Source
		if strings.HasSuffix(p, ".mpy") {
			kind = modver.Compiled
			// An empty compiled file is an interrupted copy, not a module.
			if len(data) == 0 {
				continue
			}
			if err := modver.SniffCompiledHeader(data, t.FirmwareMajor); err != nil {
				o.logger.Debug("bad compiled header", "board", t.BoardKey, "file", p, "error", err)
				return StatusBadBinaryFormat, "", nil
			}
		}
		read++
		if version == "" {
			if v, ok := modver.ExtractVersionTag(data, kind); ok {
				version = v
			}
		}
	}

	switch {
	case read == 0 && m.Package && lib[m.Name].IsDir:
		// The package directory exists but holds nothing readable.
		return StatusInvalidFile, "", nil
	case read == 0:
		return StatusMissing, "", nil
	case version == "":
		return StatusInvalidFile, "", nil
	case modver.Compare(version, m.Version) == 0:
		return StatusUpToDate, version, nil
	case !modver.SameMajor(version, m.Version):
		return StatusMajorUpdate, version, nil
	default:
		return StatusMinorUpdate, version, nil
	}
}
