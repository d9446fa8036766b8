// Package config loads the engine configuration document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"compliance/internal/errors"
	"compliance/internal/paths"
)

// EnvPrefix prefixes environment overrides (COMPLIANCE_ENGINE_STRICT_MODE=true).
const EnvPrefix = "COMPLIANCE"

// PathEnv names the environment variable that overrides the config location.
const PathEnv = "COMPLIANCE_CONFIG"

// Dir is the repo-relative directory holding the config and rule-sets.
const Dir = ".compliance"

// SupportedExtensions lists config extensions in lookup order.
var SupportedExtensions = []string{"yaml", "yml", "json", "toml"}

// Config is the decoded engine configuration. It is handed out by value and
// must not be mutated after Load.
type Config struct {
	Engine           EngineConfig   `mapstructure:"engine"`
	Rules            RulesConfig    `mapstructure:"rules"`
	Checkers         CheckersConfig `mapstructure:"checkers"`
	ExcludePaths     []string       `mapstructure:"exclude_paths"`
	FileRulesMapping []FileRule     `mapstructure:"file_rules_mapping"`
	Logging          LoggingConfig  `mapstructure:"logging"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// EngineConfig contains orchestrator settings
type EngineConfig struct {
	StrictMode     bool   `mapstructure:"strict_mode"`
	EnableAuditLog bool   `mapstructure:"enable_audit_log"`
	AuditLogPath   string `mapstructure:"audit_log_path"`
	AuditDBPath    string `mapstructure:"audit_db_path"`
	Workers        int    `mapstructure:"workers"`
	ContainerRoot  string `mapstructure:"container_root"`
}

// RulesConfig locates the rule-set documents
type RulesConfig struct {
	RulesDir string `mapstructure:"rules_dir"`
}

// CheckersConfig is recognized for compatibility; checkers are compiled in.
type CheckersConfig struct {
	CheckersDir string `mapstructure:"checkers_dir"`
}

// FileRule routes files matching Pattern to the named rule-sets.
type FileRule struct {
	Pattern string   `mapstructure:"pattern"`
	Rules   []string `mapstructure:"rules"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			StrictMode:     false,
			EnableAuditLog: true,
			AuditLogPath:   filepath.ToSlash(filepath.Join(Dir, "audit.log")),
			Workers:        1,
			ContainerRoot:  "/app",
		},
		Rules:    RulesConfig{RulesDir: Dir + "/rules"},
		Checkers: CheckersConfig{CheckersDir: Dir + "/checkers"},
		Logging:  LoggingConfig{Level: "warn"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("engine.strict_mode", d.Engine.StrictMode)
	v.SetDefault("engine.enable_audit_log", d.Engine.EnableAuditLog)
	v.SetDefault("engine.audit_log_path", d.Engine.AuditLogPath)
	v.SetDefault("engine.audit_db_path", d.Engine.AuditDBPath)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.container_root", d.Engine.ContainerRoot)
	v.SetDefault("rules.rules_dir", d.Rules.RulesDir)
	v.SetDefault("checkers.checkers_dir", d.Checkers.CheckersDir)
	v.SetDefault("exclude_paths", []string{})
	v.SetDefault("file_rules_mapping", []interface{}{})
	v.SetDefault("logging.level", d.Logging.Level)
}

// Locate returns the configuration path for repoRoot. COMPLIANCE_CONFIG wins
// when set; otherwise the first existing .compliance/config.<ext>.
func Locate(repoRoot string) (string, error) {
	if override := os.Getenv(PathEnv); override != "" {
		return paths.Absolute(override, repoRoot), nil
	}
	for _, ext := range SupportedExtensions {
		candidate := filepath.Join(repoRoot, Dir, "config."+ext)
		if paths.IsFile(candidate) {
			return candidate, nil
		}
	}
	return "", errors.New(errors.ConfigMissing,
		fmt.Sprintf("configuration not found under %s", filepath.Join(repoRoot, Dir)), nil)
}

// Load reads, interpolates and decodes the configuration at path.
func Load(path string) (Config, error) {
	if !paths.IsFile(path) {
		return Config{}, errors.New(errors.ConfigMissing, "configuration not found: "+path, nil)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yml" {
		v.SetConfigType("yaml")
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.New(errors.ConfigInvalid, "cannot parse configuration "+path, err)
	}

	settings, _ := Interpolate(v.AllSettings()).(map[string]interface{})

	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Config{}, errors.New(errors.InternalError, "cannot build config decoder", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return Config{}, errors.New(errors.ConfigInvalid, "invalid configuration "+path, err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.New(errors.ConfigInvalid, "invalid configuration "+path, err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		c.Engine.Workers = 1
	}
	for _, pattern := range c.ExcludePaths {
		if !doublestar.ValidatePattern(pattern) {
			return &ConfigError{Field: "exclude_paths", Message: "bad glob " + pattern}
		}
	}
	for i, fr := range c.FileRulesMapping {
		if fr.Pattern == "" {
			return &ConfigError{Field: fmt.Sprintf("file_rules_mapping[%d].pattern", i), Message: "empty pattern"}
		}
		if !doublestar.ValidatePattern(fr.Pattern) {
			return &ConfigError{Field: fmt.Sprintf("file_rules_mapping[%d].pattern", i), Message: "bad glob " + fr.Pattern}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Interpolate returns a copy of v where every string of the exact form
// ${NAME} is replaced by the value of NAME, if set.
func Interpolate(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = Interpolate(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(val))
		for k, item := range val {
			out[k] = Interpolate(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Interpolate(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = Interpolate(item).(string)
		}
		return out
	case string:
		if m := envRef.FindStringSubmatch(val); m != nil {
			if env, ok := os.LookupEnv(m[1]); ok {
				return env
			}
		}
		return val
	default:
		return v
	}
}
