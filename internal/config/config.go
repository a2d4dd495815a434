package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the gateway.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Backend BackendConfig `yaml:"backend"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	LogLevel string       `yaml:"log_level"`
}

// ListenConfig defines the gateway's own listening surface: the MySQL wire
// endpoint clients connect to, and the operational HTTP API.
type ListenConfig struct {
	BindAddress string `yaml:"bind_address"`
	APIPort     int    `yaml:"api_port"`
	APIBind     string `yaml:"api_bind"`
}

// BackendConfig is the single PostgreSQL backend the gateway translates
// every session's traffic to (spec §6).
type BackendConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	DBName         string        `yaml:"dbname"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"sslmode"`
	MaxConnections int           `yaml:"max_connections"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// DSN builds the libpq-style connection string lib/pq expects.
func (b BackendConfig) DSN() string {
	sslmode := b.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		b.Host, b.Port, b.DBName, b.Username, b.Password, sslmode)
}

// MySQLConfig is the single credential the gateway's own MySQL-facing
// endpoint authenticates clients against (spec §6's MYSQL_USERNAME /
// MYSQL_PASSWORD). Hot-reloadable, unlike Backend and Listen.
type MySQLConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Redacted returns a copy of the config with secrets masked, safe to log.
func (c Config) Redacted() Config {
	r := c
	if r.Backend.Password != "" {
		r.Backend.Password = "***REDACTED***"
	}
	if r.MySQL.Password != "" {
		r.MySQL.Password = "***REDACTED***"
	}
	return r
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values; an unset variable leaves the placeholder untouched so a missing
// override is visible rather than silently becoming an empty string.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution.
// Environment variables named directly after spec §6 (DB_HOST, DB_USER,
// DB_PASSWORD, DB_NAME, MYSQL_USERNAME, MYSQL_PASSWORD, BIND_ADDRESS,
// LOG_LEVEL) take precedence over whatever the YAML file holds, so a
// container can run with nothing but env vars and no mounted file content.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		data = substituteEnvVars(data)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("DB_HOST"); ok {
		cfg.Backend.Host = v
	}
	if v, ok := os.LookupEnv("DB_USER"); ok {
		cfg.Backend.Username = v
	}
	if v, ok := os.LookupEnv("DB_PASSWORD"); ok {
		cfg.Backend.Password = v
	}
	if v, ok := os.LookupEnv("DB_NAME"); ok {
		cfg.Backend.DBName = v
	}
	if v, ok := os.LookupEnv("MYSQL_USERNAME"); ok {
		cfg.MySQL.Username = v
	}
	if v, ok := os.LookupEnv("MYSQL_PASSWORD"); ok {
		cfg.MySQL.Password = v
	}
	if v, ok := os.LookupEnv("BIND_ADDRESS"); ok {
		cfg.Listen.BindAddress = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.BindAddress == "" {
		cfg.Listen.BindAddress = "0.0.0.0:3306"
	}
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8080
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.Backend.Port == 0 {
		cfg.Backend.Port = 5432
	}
	if cfg.Backend.MaxConnections == 0 {
		cfg.Backend.MaxConnections = 20
	}
	if cfg.Backend.AcquireTimeout == 0 {
		cfg.Backend.AcquireTimeout = 10 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.Backend.Host == "" {
		return fmt.Errorf("backend: host is required")
	}
	if cfg.Backend.DBName == "" {
		return fmt.Errorf("backend: dbname is required")
	}
	if cfg.Backend.Username == "" {
		return fmt.Errorf("backend: username is required")
	}
	if cfg.MySQL.Username == "" {
		return fmt.Errorf("mysql: username is required")
	}
	return nil
}

// Watcher watches a config file for changes and calls the callback with the
// new config. The gateway's callback applies only the MySQL credentials
// (spec §6): BindAddress and the backend DSN are read once at startup by
// the listener and executor and are not re-read here.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:    path,
		callback: callback,
		watcher: w,
		stopCh:  make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	// Debounce timer to avoid rapid reloads
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("[config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[config] configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
