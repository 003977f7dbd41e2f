package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Logger defines the logging interface used by the web channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the web channel settings.
type Config struct {
	// SeedHost is the board asked for its peer list ("circuitpython.local").
	SeedHost string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Channel discovers boards through a seed board's mDNS peer list.
type Channel struct {
	cfg    Config
	client *http.Client
	logger Logger
}

// NewChannel creates a web channel.
func NewChannel(cfg Config) *Channel {
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Channel{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the channel.
func (c *Channel) SetLogger(logger Logger) {
	c.logger = logger
}

// SetHTTPClient replaces the HTTP client used for every request.
func (c *Channel) SetHTTPClient(client *http.Client) {
	c.client = client
}

// Kind returns transport.KindWeb.
func (c *Channel) Kind() transport.Kind {
	return transport.KindWeb
}

// peerRecord is one entry of /cp/devices.json.
type peerRecord struct {
	Hostname     string `json:"hostname"`
	InstanceName string `json:"instance_name"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
}

// devicesDocument is the object form of /cp/devices.json.
type devicesDocument struct {
	Total   int          `json:"total"`
	Devices []peerRecord `json:"devices"`
}

// Enumerate asks the seed board for itself and its peers.
// An unreachable seed yields transport.ErrUnreachable.
func (c *Channel) Enumerate(ctx context.Context) ([]transport.Endpoint, error) {
	seedAddr := net.JoinHostPort(c.cfg.SeedHost, strconv.Itoa(c.cfg.Port))
	seed := newSession(c.client, transport.Endpoint{Kind: transport.KindWeb, Address: seedAddr}, c.cfg)

	var records []peerRecord

	self, err := seed.version(ctx)
	if err != nil {
		return nil, err
	}
	if self.IP != "" {
		port := self.Port
		if port == 0 {
			port = c.cfg.Port
		}
		records = append(records, peerRecord{
			Hostname:     self.Hostname,
			InstanceName: self.BoardName,
			IP:           self.IP,
			Port:         port,
		})
	}

	peers, err := seed.devices(ctx)
	if err != nil {
		c.logger.Debug("web: peer list unavailable", "seed", seedAddr, "error", err)
	}
	records = append(records, peers...)

	seen := make(map[string]bool)
	var endpoints []transport.Endpoint
	for _, r := range records {
		if r.IP == "" {
			continue
		}
		port := r.Port
		if port == 0 {
			port = 80
		}
		addr := net.JoinHostPort(r.IP, strconv.Itoa(port))
		if seen[addr] {
			continue
		}
		seen[addr] = true
		endpoints = append(endpoints, transport.Endpoint{
			Kind:       transport.KindWeb,
			Address:    addr,
			Name:       r.InstanceName,
			FallbackID: strings.TrimSuffix(r.Hostname, ".local"),
		})
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Address < endpoints[j].Address
	})
	return endpoints, nil
}

// Connect opens a session and verifies the board answers version.json.
func (c *Channel) Connect(ctx context.Context, ep transport.Endpoint) (transport.Session, error) {
	if ep.Kind != transport.KindWeb {
		return nil, fmt.Errorf("%w: endpoint kind %q", transport.ErrUnsupported, ep.Kind)
	}
	s := newSession(c.client, ep, c.cfg)
	if _, err := s.DeviceInfo(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// decodePeers accepts both the bare-array and the {"devices": [...]} forms.
func decodePeers(data []byte) ([]peerRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []peerRecord
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc devicesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Devices, nil
}
