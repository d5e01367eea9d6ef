package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/predobs-cli/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. PREDOBS_EXPORT_DIR.
	EnvPrefix = "PREDOBS"
	dirName   = ".predobs"
	fileName  = "config.yaml"
)

// Global configuration structure.
type Global struct {
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
	Mode      string `mapstructure:"mode" yaml:"mode"`

	// Legacy run tool
	RunnerBinary     string `mapstructure:"runner_binary" yaml:"runner_binary"`
	RunnerMode       string `mapstructure:"runner_mode" yaml:"runner_mode"`
	RunnerTimeoutSec int    `mapstructure:"runner_timeout_sec" yaml:"runner_timeout_sec"`

	// Artifact discovery
	LegacyExt     string `mapstructure:"legacy_ext" yaml:"legacy_ext"`
	RelationalExt string `mapstructure:"relational_ext" yaml:"relational_ext"`

	// Relational extraction
	GroupSuffix    string   `mapstructure:"group_suffix" yaml:"group_suffix"`
	ReservedTables []string `mapstructure:"reserved_tables" yaml:"reserved_tables"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// RunnerTimeout returns the run tool timeout; zero disables it.
func (g *Global) RunnerTimeout() time.Duration {
	if g.RunnerTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(g.RunnerTimeoutSec) * time.Second
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"export_dir", "mode",
	"runner_binary", "runner_mode", "runner_timeout_sec",
	"legacy_ext", "relational_ext",
	"group_suffix", "reserved_tables",
	"log_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("export_dir", ".")
	v.SetDefault("mode", "auto")
	v.SetDefault("runner_binary", "")
	v.SetDefault("runner_mode", "PredictedObserved")
	v.SetDefault("runner_timeout_sec", 600)
	v.SetDefault("legacy_ext", ".apsim")
	v.SetDefault("relational_ext", ".db")
	v.SetDefault("group_suffix", "NextGen")
	v.SetDefault("reserved_tables", []string{"Simulations", "_Checkpoints", "_Metadata", "_Units", "_Messages"})
	v.SetDefault("log_level", "info")
}

// DefaultPath returns ~/.predobs/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.predobs/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// A missing explicit file is allowed so `config set` can create it.
		if _, err := os.Stat(cfgFile); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
			}
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, dirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
