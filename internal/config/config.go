package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for bidboard. It is built once at
// start-up and passed by pointer to the components that need it; nothing
// reads the environment after Load returns.
type Config struct {
	Server     Server     `yaml:"server"`
	Snapshot   Snapshot   `yaml:"snapshot"`
	Upstream   Upstream   `yaml:"upstream"`
	Static     Static     `yaml:"static"`
	Credential Credential `yaml:"credential"`
	Storage    Storage    `yaml:"storage"`
	Logging    Logging    `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	GRPCPort       int           `yaml:"grpc_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Snapshot configures the historical snapshot directory and decoding.
type Snapshot struct {
	Dir           string   `yaml:"dir"`
	Encoding      string   `yaml:"encoding"`
	MissingValues []string `yaml:"missing_values"`
	DecodeWorkers int      `yaml:"decode_workers"`
	Watch         bool     `yaml:"watch"`
}

// Upstream holds the realtime market-data endpoint and its identifiers.
type Upstream struct {
	URLTemplate string        `yaml:"url_template"`
	Token       string        `yaml:"token"`
	DeviceID    string        `yaml:"device_id"`
	UserID      string        `yaml:"user_id"`
	Timeout     time.Duration `yaml:"timeout"`
	Proxy       string        `yaml:"proxy"`
	RatePerMin  int           `yaml:"rate_limit_per_min"`
}

// Static points at the prebuilt frontend.
type Static struct {
	Dir   string `yaml:"dir"`
	Index string `yaml:"index"`
}

// Credential locates the generated password file.
type Credential struct {
	PasswordFile string `yaml:"password_file"`
}

// Storage holds paths for the optional archive and audit log.
type Storage struct {
	ArchiveDir string `yaml:"archive_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File, when set, receives a copy of the log. "{date}" expands to the
	// start-up date.
	File string `yaml:"file"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// DefaultUpstreamURL is the MorningBiddingList endpoint. {device_id},
// {token} and {user_id} are substituted at request time.
const DefaultUpstreamURL = "https://apphwhq.longhuvip.com/w1/api/index.php?Order=1&a=MorningBiddingList&st=200&c=HomeDingPan&PhoneOSNew=1&DeviceID={device_id}&VerSion=5.20.0.2&Token={token}&Index=0&PidType=0&apiv=w41&Type=4&UserID={user_id}"

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 5001
	defaultSnapshotDir  = "copy_bidding"
	defaultStaticDir    = "frontend/build"
	defaultStaticIndex  = "index.html"
	defaultPasswordFile = "backend_api/password.json"
	defaultDeviceID     = "d66474b3-fd78-3a95-a56d-76e29e765ea3"
	defaultUserID       = "2675923"
	defaultTimeout      = 5 * time.Second
	defaultReqTimeout   = 30 * time.Second
	defaultWorkers      = 8
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds a Config from, in increasing priority: built-in defaults, the
// YAML file at path (a missing file is not an error), and environment
// variables. envFiles are read with godotenv first; they never override
// variables already present in the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = port
	}

	if v := os.Getenv("SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("SNAPSHOT_ENCODING"); v != "" {
		cfg.Snapshot.Encoding = v
	}

	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Upstream.Token = v
	}
	if v := os.Getenv("DEVICE_ID"); v != "" {
		cfg.Upstream.DeviceID = v
	}
	if v := os.Getenv("USER_ID"); v != "" {
		cfg.Upstream.UserID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Upstream.Proxy = v
	}

	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.Static.Dir = v
	}
	if v := os.Getenv("PASSWORD_FILE"); v != "" {
		cfg.Credential.PasswordFile = v
	}

	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaultReqTimeout
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = defaultSnapshotDir
	}
	if cfg.Snapshot.DecodeWorkers == 0 {
		cfg.Snapshot.DecodeWorkers = defaultWorkers
	}
	if cfg.Upstream.URLTemplate == "" {
		cfg.Upstream.URLTemplate = DefaultUpstreamURL
	}
	if cfg.Upstream.DeviceID == "" {
		cfg.Upstream.DeviceID = defaultDeviceID
	}
	if cfg.Upstream.UserID == "" {
		cfg.Upstream.UserID = defaultUserID
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = defaultTimeout
	}
	if cfg.Static.Dir == "" {
		cfg.Static.Dir = defaultStaticDir
	}
	if cfg.Static.Index == "" {
		cfg.Static.Index = defaultStaticIndex
	}
	if cfg.Credential.PasswordFile == "" {
		cfg.Credential.PasswordFile = defaultPasswordFile
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks values that would otherwise fail late. A missing upstream
// token is allowed: the realtime endpoint reports it per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("server.grpc_port must differ from server.port")
	}
	if c.Snapshot.DecodeWorkers < 0 {
		return fmt.Errorf("snapshot.decode_workers must not be negative")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream.timeout must not be negative")
	}
	if c.Upstream.RatePerMin < 0 {
		return fmt.Errorf("upstream.rate_limit_per_min must not be negative")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns the gRPC listen address, or "" when gRPC is disabled.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
