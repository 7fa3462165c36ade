package config

const (
	ConfigFileName = "nodeworker.yaml"
	EnvPrefix      = "NODEWORKER"
	EnvFileName    = ".env"

	DefaultOutdir              = "dist"
	DefaultWorkerDir           = "workers"
	DefaultTarget              = "node18"
	DefaultLogLevel            = "info"
	DefaultMaxConcurrentWrites = 8
)

var (
	GlobalConfig = DefaultConfig()

	// Set from the root command's persistent flags
	ConfigPath string
	Verbose    bool

	// ConfigFileUsed is the file GlobalConfig was read from, empty when only
	// defaults and the environment applied.
	ConfigFileUsed string
)

type Config struct {
	Entries   []string `mapstructure:"entries" yaml:"entries"`
	Outdir    string   `mapstructure:"outdir" yaml:"outdir"`
	WorkerDir string   `mapstructure:"worker_dir" yaml:"worker_dir"`
	Target    string   `mapstructure:"target" yaml:"target"`
	External  []string `mapstructure:"external" yaml:"external"`

	Sourcemap bool `mapstructure:"sourcemap" yaml:"sourcemap"`
	Minify    bool `mapstructure:"minify" yaml:"minify"`
	Splitting bool `mapstructure:"splitting" yaml:"splitting"`
	Manifest  bool `mapstructure:"manifest" yaml:"manifest"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Output writer pool configuration
	MaxConcurrentWrites int `mapstructure:"max_concurrent_writes" yaml:"max_concurrent_writes"`
}

func DefaultConfig() Config {
	return Config{
		Entries:             []string{"src/index.js"},
		Outdir:              DefaultOutdir,
		WorkerDir:           DefaultWorkerDir,
		Target:              DefaultTarget,
		External:            []string{},
		Splitting:           true,
		Manifest:            true,
		LogLevel:            DefaultLogLevel,
		MaxConcurrentWrites: DefaultMaxConcurrentWrites,
	}
}
