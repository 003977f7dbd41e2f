package bundle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxDownloadSize bounds a single index or file download.
const maxDownloadSize = 16 << 20

// Source serves catalog indexes and module files.
type Source interface {
	// FetchIndex returns the raw index document for a firmware major.
	FetchIndex(ctx context.Context, major int) ([]byte, error)

	// FetchFile returns one module file; path is relative to /lib.
	FetchFile(ctx context.Context, major int, path string) ([]byte, error)
}

// HTTPSource reads a bundle mirror over HTTP.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source for the mirror at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("bundle: parsing catalog url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bundle: catalog url must be http or https, got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{base: u, client: &http.Client{Timeout: timeout}}, nil
}

// FetchIndex downloads {base}/{major}/index.json.
func (s *HTTPSource) FetchIndex(ctx context.Context, major int) ([]byte, error) {
	return s.get(ctx, strconv.Itoa(major), "index.json")
}

// FetchFile downloads {base}/{major}/lib/{path}.
func (s *HTTPSource) FetchFile(ctx context.Context, major int, p string) ([]byte, error) {
	clean, err := cleanLibPath(p)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, strconv.Itoa(major), "lib", clean)
}

func (s *HTTPSource) get(ctx context.Context, elem ...string) ([]byte, error) {
	u := s.base.JoinPath(elem...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bundle: building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bundle: GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bundle: GET %s: %s", u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("bundle: reading %s: %w", u, err)
	}
	return data, nil
}

// DirSource reads a bundle mirror from a local directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// FetchIndex reads {root}/{major}/index.json.
func (s *DirSource) FetchIndex(_ context.Context, major int) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, strconv.Itoa(major), "index.json"))
}

// FetchFile reads {root}/{major}/lib/{path}.
func (s *DirSource) FetchFile(_ context.Context, major int, p string) ([]byte, error) {
	clean, err := cleanLibPath(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, strconv.Itoa(major), "lib", filepath.FromSlash(clean)))
}

// cleanLibPath rejects paths that would leave the lib directory.
func cleanLibPath(p string) (string, error) {
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != strings.TrimPrefix(p, "/") {
		return "", fmt.Errorf("bundle: invalid file path %q", p)
	}
	return clean, nil
}
