package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Board Sync Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Transports TransportsConfig `yaml:"transports"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// DiscoveryConfig controls the board discovery scheduler.
type DiscoveryConfig struct {
	// Interval is the delay between incremental rescans (seconds).
	Interval int `yaml:"interval"`

	// SettleDelay is how long to wait after the initial full scan before
	// re-running the web channel, since boards announce themselves late (seconds).
	SettleDelay int `yaml:"settle_delay"`

	// ConnectTimeout bounds a single endpoint connect + identity lookup (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`
}

// TransportsConfig groups the per-channel transport settings.
type TransportsConfig struct {
	USB USBConfig `yaml:"usb"`
	Web WebConfig `yaml:"web"`
	BLE BLEConfig `yaml:"ble"`
}

// USBConfig contains settings for boards mounted as USB mass storage.
type USBConfig struct {
	Enabled bool `yaml:"enabled"`

	// MountRoots are directories whose children are candidate board volumes
	// (e.g. /media/<user>, /Volumes).
	MountRoots []string `yaml:"mount_roots"`

	// Watch enables filesystem notifications on the mount roots so that a
	// newly mounted board triggers an immediate rescan.
	Watch bool `yaml:"watch"`
}

// WebConfig contains settings for the boards' HTTP file service.
type WebConfig struct {
	Enabled bool `yaml:"enabled"`

	// SeedHost is the first board contacted; its peer list is used to find the others.
	SeedHost string `yaml:"seed_host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout is the per-request HTTP timeout (seconds).
	Timeout int `yaml:"timeout"`
}

// BLEConfig is reserved for the Bluetooth LE channel.
type BLEConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CatalogConfig contains the library bundle catalog settings.
type CatalogConfig struct {
	// URL is the base URL of the bundle mirror: {url}/{major}/index.json.
	URL string `yaml:"url"`

	// Directory is a local mirror with the same layout; used instead of URL when set.
	Directory string `yaml:"directory"`

	// CacheTTL is how long a cached index is served before refetching (minutes).
	CacheTTL int `yaml:"cache_ttl"`

	// Timeout is the HTTP timeout for catalog downloads (seconds).
	Timeout int `yaml:"timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the REST API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BOARDSYNC_SECTION_KEY
// For example: BOARDSYNC_DATABASE_PATH, BOARDSYNC_WEB_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Interval:       10,
			SettleDelay:    2,
			ConnectTimeout: 5,
		},
		Transports: TransportsConfig{
			USB: USBConfig{
				Enabled:    true,
				MountRoots: defaultMountRoots(),
				Watch:      true,
			},
			Web: WebConfig{
				Enabled:  true,
				SeedHost: "circuitpython.local",
				Port:     80,
				Timeout:  10,
			},
		},
		Catalog: CatalogConfig{
			URL:      "https://bundles.boardsync.dev/circuitpython",
			CacheTTL: 60,
			Timeout:  30,
		},
		Database: DatabaseConfig{
			Path:        "./data/boardsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "boardsync-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 120,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// defaultMountRoots returns the usual removable-media mount points.
func defaultMountRoots() []string {
	roots := []string{"/Volumes", "/run/media", "/media"}
	if user := os.Getenv("USER"); user != "" {
		roots = append(roots, "/run/media/"+user, "/media/"+user)
	}
	return roots
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BOARDSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("BOARDSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Web workflow credentials
	if v := os.Getenv("BOARDSYNC_WEB_HOST"); v != "" {
		cfg.Transports.Web.SeedHost = v
	}
	if v := os.Getenv("BOARDSYNC_WEB_PASSWORD"); v != "" {
		cfg.Transports.Web.Password = v
	}

	// Catalog
	if v := os.Getenv("BOARDSYNC_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("BOARDSYNC_CATALOG_DIR"); v != "" {
		cfg.Catalog.Directory = v
	}

	// Discovery
	if v := os.Getenv("BOARDSYNC_DISCOVERY_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Discovery.Interval = n
		}
	}

	// MQTT
	if v := os.Getenv("BOARDSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BOARDSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BOARDSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BOARDSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BOARDSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("BOARDSYNC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength is the minimum accepted length of the API signing secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Discovery.Interval < 1 {
		errs = append(errs, "discovery.interval must be at least 1 second")
	}
	if c.Discovery.SettleDelay < 0 {
		errs = append(errs, "discovery.settle_delay cannot be negative")
	}

	if c.Transports.USB.Enabled && len(c.Transports.USB.MountRoots) == 0 {
		errs = append(errs, "transports.usb.mount_roots is required when usb is enabled")
	}
	if c.Transports.Web.Enabled {
		if c.Transports.Web.SeedHost == "" {
			errs = append(errs, "transports.web.seed_host is required when web is enabled")
		}
		if c.Transports.Web.Port < 1 || c.Transports.Web.Port > 65535 {
			errs = append(errs, "transports.web.port must be between 1 and 65535")
		}
	}

	if c.Catalog.URL == "" && c.Catalog.Directory == "" {
		errs = append(errs, "catalog.url or catalog.directory is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		// The API can trigger writes to every attached board.
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the api is enabled (set BOARDSYNC_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// DiscoveryInterval returns the incremental rescan interval as a Duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Discovery.Interval) * time.Second
}

// SettleDelay returns the post-startup settle delay as a Duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Discovery.SettleDelay) * time.Second
}

// ConnectTimeout returns the per-endpoint connect timeout as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Discovery.ConnectTimeout) * time.Second
}

// CatalogCacheTTL returns the catalog cache lifetime as a Duration.
func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTL) * time.Minute
}
