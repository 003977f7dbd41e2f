package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Module is one catalog entry. It is immutable once loaded.
type Module struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Package      bool     `json:"package"`
	Files        []string `json:"files"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Index is the decoded catalog document for one firmware major.
type Index struct {
	FirmwareMajor int       `json:"firmware_major"`
	Released      time.Time `json:"released,omitempty"`
	Modules       []Module  `json:"modules"`
}

// File is one module file ready to be written to a board.
type File struct {
	// Path is relative to /lib ("adafruit_display_text/label.mpy").
	Path    string
	Data    []byte
	ModTime time.Time
}

// Catalog is the loaded module index for one firmware major. It is safe for
// concurrent reads.
type Catalog struct {
	major    int
	released time.Time
	modules  map[string]Module
	names    []string
	src      Source
}

// Load fetches and decodes the index for a firmware major.
//
// Parameters:
//   - ctx: Context for the download
//   - src: Where the index and files come from
//   - major: Firmware major version
//
// Returns:
//   - *Catalog: Read-only catalog
//   - error: ErrCatalogUnavailable if the index cannot be fetched or decoded
func Load(ctx context.Context, src Source, major int) (*Catalog, error) {
	data, err := src.FetchIndex(ctx, major)
	if err != nil {
		return nil, fmt.Errorf("%w: firmware %d: %v", ErrCatalogUnavailable, major, err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: firmware %d: decoding index: %v", ErrCatalogUnavailable, major, err)
	}
	if idx.FirmwareMajor != 0 && idx.FirmwareMajor != major {
		return nil, fmt.Errorf("%w: index is for firmware %d, wanted %d", ErrCatalogUnavailable, idx.FirmwareMajor, major)
	}
	return newCatalog(major, idx, src)
}

func newCatalog(major int, idx Index, src Source) (*Catalog, error) {
	c := &Catalog{
		major:    major,
		released: idx.Released,
		modules:  make(map[string]Module, len(idx.Modules)),
		src:      src,
	}
	for _, m := range idx.Modules {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: module without a name", ErrCatalogUnavailable)
		}
		if _, dup := c.modules[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate module %q", ErrCatalogUnavailable, m.Name)
		}
		m.Files = append([]string(nil), m.Files...)
		m.Dependencies = append([]string(nil), m.Dependencies...)
		c.modules[m.Name] = m
		c.names = append(c.names, m.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// FirmwareMajor returns the firmware major the catalog was loaded for.
func (c *Catalog) FirmwareMajor() int {
	return c.major
}

// Module returns the entry for name, or ErrUnknownModule.
func (c *Catalog) Module(name string) (Module, error) {
	m, ok := c.modules[name]
	if !ok {
		return Module{}, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return m, nil
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.modules[name]
	return ok
}

// Modules returns every entry sorted by name.
func (c *Catalog) Modules() []Module {
	out := make([]Module, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.modules[n])
	}
	return out
}

// ExpandDependencies returns the transitive closure of roots over the
// direct-dependency lists, sorted by name. Already visited names are not
// expanded again, so cycles terminate. Names missing from the catalog are
// kept in the result but not expanded.
func (c *Catalog) ExpandDependencies(roots []string) []string {
	visited := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range c.modules[name].Dependencies {
			visit(dep)
		}
	}
	for _, r := range roots {
		visit(r)
	}

	out := make([]string, 0, len(visited))
	for name := range visited {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Files fetches every file of a module.
func (c *Catalog) Files(ctx context.Context, m Module) ([]File, error) {
	files := make([]File, 0, len(m.Files))
	for _, p := range m.Files {
		data, err := c.src.FetchFile(ctx, c.major, p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileUnavailable, p, err)
		}
		files = append(files, File{
			Path:    strings.TrimPrefix(p, "/"),
			Data:    data,
			ModTime: c.released,
		})
	}
	return files, nil
}
