package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jsh-team/nodeworker/internal/utils/files"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

// New returns a viper instance carrying the defaults and the environment
// bindings. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("entries", d.Entries)
	v.SetDefault("outdir", d.Outdir)
	v.SetDefault("worker_dir", d.WorkerDir)
	v.SetDefault("target", d.Target)
	v.SetDefault("external", d.External)
	v.SetDefault("sourcemap", d.Sourcemap)
	v.SetDefault("minify", d.Minify)
	v.SetDefault("splitting", d.Splitting)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_concurrent_writes", d.MaxConcurrentWrites)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the project file into a Config. An empty path means
// nodeworker.yaml in the working directory; a missing default file falls
// back to defaults, a missing explicit file is an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	explicit := path != ""
	if !explicit {
		path = ConfigFileName
	}

	ConfigFileUsed = ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
		}
		ConfigFileUsed = path
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig loads path into GlobalConfig.
func LoadConfig(path string) error {
	cfg, err := Load(New(), path)
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Validate checks the values that have no usable zero value.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Outdir) == "" {
		return fmt.Errorf("outdir cannot be empty")
	}
	if strings.TrimSpace(c.WorkerDir) == "" {
		return fmt.Errorf("worker_dir cannot be empty")
	}
	if filepath.IsAbs(c.WorkerDir) {
		return fmt.Errorf("worker_dir %q must be relative to outdir", c.WorkerDir)
	}
	if c.MaxConcurrentWrites < 1 {
		return fmt.Errorf("max_concurrent_writes must be at least 1, got %d", c.MaxConcurrentWrites)
	}
	return nil
}

// WriteDefault writes a default project file to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = ConfigFileName
	}
	if !force {
		if err := files.IsValidPath(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}

	out, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}
	if err := files.WriteFile(path, out); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

func loadEnvFile() error {
	if err := files.IsValidPath(EnvFileName); err != nil {
		return nil
	}
	if err := godotenv.Load(EnvFileName); err != nil {
		return fmt.Errorf("error loading %s: %w", EnvFileName, err)
	}
	logger.Debug("Loaded environment from %s", EnvFileName)
	return nil
}
