package libsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// libDir is where modules live on a board.
const libDir = "/lib"

// ResolveFromProgram reads a program from the board and returns the catalog
// modules it imports. Imports the catalog does not know are skipped.
func (o *Orchestrator) ResolveFromProgram(ctx context.Context, t Target, path string) (Resolution, error) {
	if path == "" {
		path = DefaultProgram
	}
	cat, err := o.catalog(ctx, t)
	if err != nil {
		return Resolution{}, err
	}

	src, err := t.Session.Read(ctx, transport.Join(path))
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return Resolution{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Resolution{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return split(cat, bundle.ExtractImports(string(src))), nil
}

// ResolveFromInstalled returns the catalog modules present in the board's
// /lib directory. A board without /lib has nothing installed.
func (o *Orchestrator) ResolveFromInstalled(ctx context.Context, t Target) (Resolution, error) {
	cat, err := o.catalog(ctx, t)
	if err != nil {
		return Resolution{}, err
	}

	entries, err := t.Session.List(ctx, transport.Dir(libDir))
	if err != nil && !errors.Is(err, transport.ErrNotFound) {
		return Resolution{}, fmt.Errorf("listing %s: %w", libDir, err)
	}
	return split(cat, installedNames(entries)), nil
}

// ResolveFromExplicitSet checks that every name is a catalog module.
func (o *Orchestrator) ResolveFromExplicitSet(ctx context.Context, t Target, names []string) (Resolution, error) {
	cat, err := o.catalog(ctx, t)
	if err != nil {
		return Resolution{}, err
	}
	roots := dedupe(names)
	for _, n := range roots {
		if _, err := cat.Module(n); err != nil {
			return Resolution{}, err
		}
	}
	return Resolution{Roots: roots}, nil
}

// installedNames turns a /lib listing into module names: dot-files are
// dropped and the .py/.mpy suffix is stripped.
func installedNames(entries []transport.FileEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		name := e.Name
		if !e.IsDir {
			name = strings.TrimSuffix(strings.TrimSuffix(name, ".mpy"), ".py")
		}
		names = append(names, name)
	}
	return dedupe(names)
}

// split partitions names into catalog modules and everything else.
func split(cat *bundle.Catalog, names []string) Resolution {
	res := Resolution{Roots: []string{}}
	for _, n := range dedupe(names) {
		if cat.Has(n) {
			res.Roots = append(res.Roots, n)
		} else {
			res.Skipped = append(res.Skipped, n)
		}
	}
	return res
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
