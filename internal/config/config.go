package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. DOCPUB_CONTENT_API_URL.
const EnvPrefix = "DOCPUB"

// Manager owns the live configuration. The config file is optional;
// defaults and DOCPUB_* environment variables fill the rest.
type Manager struct {
	v       *viper.Viper
	logger  *slog.Logger
	current atomic.Pointer[Config]

	// reloadMu serializes reads of the viper state after startup.
	reloadMu sync.Mutex

	mu        sync.Mutex
	callbacks []func(*Config)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger reports failed reloads to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager reads cfgFile, or config.yaml from ./ and $HOME/.docpub when
// cfgFile is empty.
func NewManager(cfgFile string, opts ...Option) (*Manager, error) {
	m := &Manager{v: viper.New(), logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}

	for _, e := range DefaultEntries() {
		m.v.SetDefault(e.Key, e.Value)
	}
	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	if cfgFile != "" {
		m.v.SetConfigFile(cfgFile)
	} else {
		m.v.SetConfigName("config")
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("$HOME/.docpub")
	}

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)
	return m, nil
}

func (m *Manager) decode() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration. Callers must not modify it.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// ConfigFile returns the file the configuration was read from, if any.
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// OnChange registers fn to run after every reload that changes the config.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Reload re-reads the config file and applies it.
func (m *Manager) Reload() error {
	if m.ConfigFile() == "" {
		return errors.New("no config file to reload")
	}
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return m.apply()
}

// WatchConfig reloads whenever the config file is written.
func (m *Manager) WatchConfig() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.reloadMu.Lock()
		defer m.reloadMu.Unlock()
		if err := m.apply(); err != nil {
			m.logger.Warn("config reload failed, keeping previous config", "file", e.Name, "error", err)
		}
	})
	m.v.WatchConfig()
}

// apply swaps in the decoded viper state and notifies callbacks. Editors
// often produce several write events per save; unchanged configs are
// dropped.
func (m *Manager) apply() error {
	cfg, err := m.decode()
	if err != nil {
		return err
	}
	if old := m.current.Swap(cfg); reflect.DeepEqual(old, cfg) {
		return nil
	}

	m.mu.Lock()
	callbacks := append(([]func(*Config))(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info("config reloaded", "file", m.ConfigFile())
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in value.
func ResolveEnvVars(value string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

const defaultHeader = `# docpub configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables.
# Any key can be overridden with DOCPUB_<KEY>, e.g. DOCPUB_CONTENT_API_URL.

`

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	return os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644)
}
