package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// maxResponseSize bounds any single response body read from a board.
const maxResponseSize = 4 << 20

// versionDocument is /cp/version.json.
type versionDocument struct {
	WebAPIVersion int    `json:"web_api_version"`
	Version       string `json:"version"`
	BoardName     string `json:"board_name"`
	BoardID       string `json:"board_id"`
	SerialNum     string `json:"serial_num"`
	UID           string `json:"UID"`
	Hostname      string `json:"hostname"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
}

// listingEntry is one file in a /fs/ directory listing.
type listingEntry struct {
	Name       string `json:"name"`
	Directory  bool   `json:"directory"`
	ModifiedNS int64  `json:"modified_ns"`
	FileSize   int64  `json:"file_size"`
}

// listingDocument is the object form of a directory listing (web API v4+).
type listingDocument struct {
	Writable bool           `json:"writable"`
	Files    []listingEntry `json:"files"`
}

// Session talks to one board's web workflow.
type Session struct {
	client   *http.Client
	endpoint transport.Endpoint
	base     *url.URL
	username string
	password string
}

func newSession(client *http.Client, ep transport.Endpoint, cfg Config) *Session {
	return &Session{
		client:   client,
		endpoint: ep,
		base:     &url.URL{Scheme: "http", Host: ep.Address},
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Endpoint returns the endpoint the session was opened from.
func (s *Session) Endpoint() transport.Endpoint {
	return s.endpoint
}

// DeviceInfo returns the board metadata from /cp/version.json.
func (s *Session) DeviceInfo(ctx context.Context) (transport.DeviceInfo, error) {
	v, err := s.version(ctx)
	if err != nil {
		return transport.DeviceInfo{}, err
	}
	serial := v.SerialNum
	if serial == "" {
		serial = v.UID
	}
	return transport.DeviceInfo{
		SerialNumber:    serial,
		BoardName:       v.BoardName,
		FirmwareVersion: v.Version,
		BoardID:         v.BoardID,
		IP:              v.IP,
	}, nil
}

// version fetches /cp/version.json.
func (s *Session) version(ctx context.Context) (*versionDocument, error) {
	resp, err := s.do(ctx, http.MethodGet, "/cp/version.json", nil, false, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: version.json: %s", transport.ErrUnreachable, resp.Status)
	}
	var doc versionDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding version.json: %v", transport.ErrUnreachable, err)
	}
	return &doc, nil
}

// devices fetches /cp/devices.json.
func (s *Session) devices(ctx context.Context) ([]peerRecord, error) {
	resp, err := s.do(ctx, http.MethodGet, "/cp/devices.json", nil, false, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web: devices.json: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("web: reading devices.json: %w", err)
	}
	return decodePeers(data)
}

// List returns the entries of a board directory.
func (s *Session) List(ctx context.Context, path string) ([]transport.FileEntry, error) {
	hdr := http.Header{"Accept": []string{"application/json"}}
	resp, err := s.do(ctx, http.MethodGet, "/fs"+transport.Dir(path), nil, true, hdr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusErr(resp, path); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("web: reading listing %s: %w", path, err)
	}

	var raw []listingEntry
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var doc listingDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("web: decoding listing %s: %w", path, err)
		}
		raw = doc.Files
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("web: decoding listing %s: %w", path, err)
	}

	out := make([]transport.FileEntry, 0, len(raw))
	for _, e := range raw {
		fe := transport.FileEntry{Name: e.Name, IsDir: e.Directory, Size: e.FileSize}
		if e.ModifiedNS > 0 {
			fe.ModTime = time.Unix(0, e.ModifiedNS)
		}
		out = append(out, fe)
	}
	return out, nil
}

// Read returns the contents of a board file.
func (s *Session) Read(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, "/fs"+path, nil, true, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusErr(resp, path); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("web: reading %s: %w", path, err)
	}
	return data, nil
}

// Write uploads a file, stamping it with modTime.
func (s *Session) Write(ctx context.Context, path string, data []byte, modTime time.Time) error {
	if modTime.IsZero() {
		modTime = time.Now()
	}
	hdr := http.Header{
		"Content-Type": []string{"application/octet-stream"},
		"X-Timestamp":  []string{strconv.FormatInt(modTime.UnixMilli(), 10)},
	}
	resp, err := s.do(ctx, http.MethodPut, "/fs"+path, data, true, hdr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusErr(resp, path)
}

// Mkdir creates a directory. The board answers 204 when it already exists.
func (s *Session) Mkdir(ctx context.Context, path string) error {
	hdr := http.Header{
		"X-Timestamp": []string{strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
	resp, err := s.do(ctx, http.MethodPut, "/fs"+transport.Dir(path), nil, true, hdr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return fmt.Errorf("%w: %s", transport.ErrExists, path)
	}
	return statusErr(resp, path)
}

// IsWritable reports whether the board advertises DELETE on /fs/.
func (s *Session) IsWritable(ctx context.Context) bool {
	resp, err := s.do(ctx, http.MethodOptions, "/fs/", nil, true, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	allowed := strings.ToLower(resp.Header.Get("Access-Control-Allow-Methods"))
	return strings.Contains(allowed, "delete")
}

// Close releases idle connections to the board.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do issues a request against the board. Network failures wrap
// transport.ErrUnreachable.
func (s *Session) do(ctx context.Context, method, path string, body []byte, auth bool, hdr http.Header) (*http.Response, error) {
	u := *s.base
	u.Path = path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("web: building request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if auth {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", transport.ErrUnreachable, method, u.Host, err)
	}
	return resp, nil
}

// statusErr maps a board response status to a transport error.
func statusErr(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", transport.ErrNotFound, path)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", transport.ErrConflict, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s (check the web workflow password)", transport.ErrUnreachable, path, resp.Status)
	default:
		return fmt.Errorf("web: %s: unexpected status %s", path, resp.Status)
	}
}
