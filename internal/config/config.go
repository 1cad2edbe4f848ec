package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a string ("500ms", "30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Server is the sightd configuration.
type Server struct {
	ListenAddr    string   `toml:"listen_addr"`
	ControlSocket string   `toml:"control_socket"`
	LogPath       string   `toml:"log_path"`
	Database      Database `toml:"database"`
	Redis         Redis    `toml:"redis"`
	Rabbit        Rabbit   `toml:"rabbit"`
	Lookup        Lookup   `toml:"lookup"`
}

type Database struct {
	Driver string `toml:"driver"` // "sqlite" or "mysql"
	DSN    string `toml:"dsn"`
}

// Redis configures the lookup cache. An empty Addr disables it.
type Redis struct {
	Addr      string   `toml:"addr"`
	Password  string   `toml:"password"`
	DB        int      `toml:"db"`
	LookupTTL Duration `toml:"lookup_ttl"`
}

// Rabbit configures the event relay. An empty URL disables it.
type Rabbit struct {
	URL   string `toml:"url"`
	Queue string `toml:"queue"`
}

type Lookup struct {
	Endpoint string   `toml:"endpoint"`
	Timeout  Duration `toml:"timeout"`
}

// Client is the field client configuration, shared by sightctl and sighttui.
type Client struct {
	DefaultProfile    string    `toml:"default_profile"`
	ServerURL         string    `toml:"server_url"`
	Sender            string    `toml:"sender"`
	AckedMessageFlush bool      `toml:"acked_message_flush"`
	NetProbeInterval  Duration  `toml:"net_probe_interval"`
	RequestTimeout    Duration  `toml:"request_timeout"`
	Cache             Cache     `toml:"cache"`
	Reconnect         Reconnect `toml:"reconnect"`
}

type Cache struct {
	Name     string   `toml:"name"`
	Precache []string `toml:"precache"`
}

type Reconnect struct {
	BaseDelay Duration `toml:"base_delay"`
	MaxDelay  Duration `toml:"max_delay"`
}

func DefaultServer() *Server {
	return &Server{
		ListenAddr: ":3000",
		Database:   Database{Driver: "sqlite", DSN: "sightings.db"},
		Redis:      Redis{LookupTTL: Duration{24 * time.Hour}},
		Rabbit:     Rabbit{Queue: "sightings.events"},
		Lookup:     Lookup{Endpoint: "https://dbpedia.org/sparql", Timeout: Duration{10 * time.Second}},
	}
}

func DefaultClient() *Client {
	return &Client{
		DefaultProfile:   "main",
		ServerURL:        "http://localhost:3000",
		NetProbeInterval: Duration{5 * time.Second},
		RequestTimeout:   Duration{15 * time.Second},
		Cache:            Cache{Name: "app_cache_1", Precache: []string{"/if_online", "/sights"}},
		Reconnect:        Reconnect{BaseDelay: Duration{time.Second}, MaxDelay: Duration{30 * time.Second}},
	}
}

// LoadServer reads path over the defaults and applies SIGHTD_* environment
// overrides. A missing file is not an error.
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()
	if err := decode(path, cfg); err != nil {
		return nil, err
	}
	envString("SIGHTD_LISTEN_ADDR", &cfg.ListenAddr)
	envString("SIGHTD_CONTROL_SOCKET", &cfg.ControlSocket)
	envString("SIGHTD_LOG_PATH", &cfg.LogPath)
	envString("SIGHTD_DB_DRIVER", &cfg.Database.Driver)
	envString("SIGHTD_DB_DSN", &cfg.Database.DSN)
	envString("SIGHTD_REDIS_ADDR", &cfg.Redis.Addr)
	envString("SIGHTD_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("SIGHTD_REDIS_DB", &cfg.Redis.DB)
	envString("SIGHTD_RABBIT_URL", &cfg.Rabbit.URL)
	envString("SIGHTD_RABBIT_QUEUE", &cfg.Rabbit.Queue)
	envString("SIGHTD_LOOKUP_ENDPOINT", &cfg.Lookup.Endpoint)
	return cfg, nil
}

// LoadClient reads path over the defaults and applies SIGHT_* environment
// overrides. A missing file is not an error.
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if err := decode(path, cfg); err != nil {
		return nil, err
	}
	envString("SIGHT_SERVER_URL", &cfg.ServerURL)
	envString("SIGHT_SENDER", &cfg.Sender)
	envString("SIGHT_PROFILE", &cfg.DefaultProfile)
	if v := os.Getenv("SIGHT_ACKED_MESSAGE_FLUSH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AckedMessageFlush = b
		}
	}
	return cfg, nil
}

func decode(path string, v any) error {
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, v); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Save writes cfg to the given path, creating parent dirs as needed.
func Save(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
