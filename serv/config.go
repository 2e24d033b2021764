package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/treeql/treeql/cdc"
	"github.com/treeql/treeql/rag"
)

const (
	configName = "application"

	envConfigDir = "YML_DIR"
	envProfile   = "PROFILE"
	envPrefix    = "TREEQL"
)

// Config is the full service configuration, read from layered YAML
// files plus TREEQL_ environment overrides.
type Config struct {
	// Application name is used in log and debug messages
	AppName string `mapstructure:"app_name"`

	// When enabled runs the service with production defaults
	Production bool `mapstructure:"production"`

	// Host and port the service listens on
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level"`

	// Logging format: "auto" (console in dev, JSON in production),
	// "json" or "simple"
	LogFormat string `mapstructure:"log_format"`

	// Sets the HTTP CORS Access-Control-Allow-Origin header
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Database configuration
	DB Database `mapstructure:"database"`

	// Auth configuration
	Auth Auth `mapstructure:"auth"`

	// LLM endpoints for the AI surface
	LLM LLMSettings `mapstructure:"llm"`

	// Vector store (Qdrant) configuration
	Vector rag.VectorConfig `mapstructure:"vector"`

	// Binlog listener configuration
	CDC cdc.Config `mapstructure:"cdc"`

	configDir string
}

// Database configuration
type Database struct {
	// MySQL DSN, e.g. user:pass@tcp(localhost:3306)/
	ConnString string `mapstructure:"connection_string"`

	// Size of the idle connection pool
	PoolSize int `mapstructure:"pool_size"`

	// Max number of active database connections allowed
	MaxConnections int `mapstructure:"max_connections"`

	// Max time after which idle database connections are closed
	MaxConnIdleTime time.Duration `mapstructure:"max_connection_idle_time"`

	// Max time after which database connections are not reused
	MaxConnLifeTime time.Duration `mapstructure:"max_connection_life_time"`
}

// Auth configuration
type Auth struct {
	// HS256 signing secret
	Secret string `mapstructure:"secret"`

	// Session token lifetime in hours
	ExpiryHours int `mapstructure:"expiry_hours"`

	// Schema-qualified account table, e.g. treeql.account
	AccountTable string `mapstructure:"account_table"`
}

// LLMSettings holds the two model endpoints the AI surface uses.
type LLMSettings struct {
	Embedding    rag.LLMConfig `mapstructure:"embedding"`
	Conversation rag.LLMConfig `mapstructure:"conversation"`
}

// ReadInConfig loads application.yaml from YML_DIR, merges
// application-<PROFILE>.yaml over it when PROFILE is set, and applies
// TREEQL_ environment overrides.
func ReadInConfig() (*Config, error) {
	return ReadInConfigFS(nil)
}

// ReadInConfigFS is the same as ReadInConfig but reads from the given
// filesystem. Used by tests.
func ReadInConfigFS(fs afero.Fs) (*Config, error) {
	dir := os.Getenv(envConfigDir)
	if dir == "" {
		dir = "."
	}

	vi := newViper(dir, configName)
	if fs != nil {
		vi.SetFs(fs)
	}
	if err := vi.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if profile := os.Getenv(envProfile); profile != "" {
		pv := newViper(dir, configName+"-"+profile)
		if fs != nil {
			pv.SetFs(fs)
		}
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: profile %s: %w", profile, err)
		}
		if err := vi.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("config: merge profile %s: %w", profile, err)
		}
	}

	conf := &Config{configDir: dir}
	if err := vi.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return conf, nil
}

// newViper returns a viper instance with the service defaults.
func newViper(dir, name string) *viper.Viper {
	vi := viper.New()
	vi.SetConfigName(name)
	vi.SetConfigType("yaml")
	vi.AddConfigPath(dir)

	vi.SetEnvPrefix(envPrefix)
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	vi.SetDefault("app_name", "TreeQL")
	vi.SetDefault("host", "0.0.0.0")
	vi.SetDefault("port", "8080")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")

	vi.SetDefault("database.pool_size", 10)
	vi.SetDefault("database.max_connections", 50)
	vi.SetDefault("database.max_connection_idle_time", 5*time.Minute)
	vi.SetDefault("database.max_connection_life_time", 30*time.Minute)

	vi.SetDefault("auth.expiry_hours", 24)
	vi.SetDefault("auth.account_table", "treeql.account")

	vi.SetDefault("cdc.server_id", 1001)
	vi.SetDefault("cdc.heartbeat", 30*time.Second)

	return vi
}

// ConfigDir returns the directory the config was loaded from. The
// vector manifest lives next to the YAML files.
func (c *Config) ConfigDir() string { return c.configDir }

// AbsolutePath resolves p relative to the config directory.
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// hostPort joins the listen host and port.
func (c *Config) hostPort() string {
	return c.Host + ":" + c.Port
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
// True when log_format is "json", or "auto" with production enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	return c.LogFormat == "auto" && c.Production
}

// TokenExpiry converts the configured hours to a duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.Auth.ExpiryHours) * time.Hour
}
