package config

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/pipeline"
)

// EnvPrefix prefixes environment overrides, e.g. FEAX_EXPORT_PREFIX
const EnvPrefix = "FEAX"

// StoreConfig locates the run database
type StoreConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// LogConfig selects the logger mode (development or production)
type LogConfig struct {
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// Config is the whole feax configuration file
type Config struct {
	model.RunSpec `yaml:",inline" mapstructure:",squash"`

	Store  StoreConfig  `json:"store" yaml:"store" mapstructure:"store"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frames.sample_count", 0)
	v.SetDefault("export.directory", "")
	v.SetDefault("export.prefix", pipeline.DefaultExportPrefix)
	v.SetDefault("export.formats", []string{pipeline.FormatJSON})
	v.SetDefault("run.workers", pipeline.DefaultWorkers)
	v.SetDefault("run.timeout", "")
	v.SetDefault("run.retry.max_attempts", pipeline.DefaultRetryConfig.MaxAttempts)
	v.SetDefault("run.retry.initial_interval", pipeline.DefaultRetryConfig.InitialInterval)
	v.SetDefault("run.retry.max_interval", pipeline.DefaultRetryConfig.MaxInterval)
	v.SetDefault("store.path", "feax.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.mode", "development")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// PathFromEnv returns the config file named by FEAX_CONFIG, or "" when unset
func PathFromEnv() string {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	_ = v.BindEnv("config")
	return v.GetString("config")
}

// Load reads a YAML or JSON config file, applies FEAX_* environment
// overrides and defaults, and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks requests, strategies and run settings before any archive
// is opened. Archives may still be empty; the command line can supply them.
// A config without field requests is valid for serving only.
func (c *Config) Validate() error {
	if len(c.FieldRequests) > 0 {
		if _, err := pipeline.ValidateRunSpec(c.RunSpec); err != nil {
			return err
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", errs.ErrInvalidConfig)
	}
	return nil
}

// Watcher reloads a config file whenever it changes
type Watcher struct {
	mu  sync.Mutex
	v   *viper.Viper
	cfg *Config
}

// Watch loads path and calls fn with every reloaded config that still
// describes a runnable extraction.
// Reload errors are passed to fn with a nil config; the last good config
// stays current.
func Watch(path string, fn func(*Config, error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: watch needs a config file", errs.ErrInvalidConfig)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{v: newViper(path), cfg: cfg}
	if err := w.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	w.v.OnConfigChange(func(fsnotify.Event) {
		w.mu.Lock()
		next, err := decode(w.v)
		if err == nil {
			err = next.Validate()
		}
		if err == nil {
			_, err = pipeline.ValidateRunSpec(next.RunSpec)
		}
		if err == nil {
			w.cfg = next
		}
		w.mu.Unlock()

		if err != nil {
			fn(nil, err)
			return
		}
		fn(next, nil)
	})
	w.v.WatchConfig()
	return w, nil
}

// Current returns the last valid config
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Encode writes cfg as YAML
func Encode(out io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Sample returns an example configuration using every strategy and region form
func Sample() *Config {
	return &Config{
		RunSpec: model.RunSpec{
			Archives: model.ArchiveSource{Root: "./results", Pattern: "*.json.gz"},
			Frames:   model.FrameSampling{SampleCount: 20},
			FieldRequests: []model.FieldRequestSpec{
				{
					Component: "PART-1-1",
					Subsets: []model.SubsetSpec{
						{
							MeshType: "element",
							MeshIDs:  []interface{}{"ALL", 12},
							Fields:   []string{"S", "LE", "PEEQ"},
							Strategy: model.StrategySpec{Type: "volume"},
						},
						{
							MeshType:    "node",
							LabelGroups: [][]interface{}{{1, "5-9", 20}},
							Fields:      []string{"U", "RF"},
							Strategy:    model.StrategySpec{Type: "arithmetic"},
						},
					},
				},
				{
					Component: "assembly",
					Subsets: []model.SubsetSpec{
						{
							MeshType: "node",
							MeshIDs:  []interface{}{"PATH"},
							Fields:   []string{"TEMP"},
							Strategy: model.StrategySpec{Type: "axisymmetric", Axis: 0},
						},
						{
							MeshType: "node",
							MeshIDs:  []interface{}{"TIP"},
							Fields:   []string{"U"},
							Strategy: model.StrategySpec{Type: "none"},
						},
					},
				},
			},
			Export: model.ExportSpec{
				Directory: "./extracted",
				Prefix:    pipeline.DefaultExportPrefix,
				Formats:   []string{pipeline.FormatJSON, pipeline.FormatCSV, pipeline.FormatNPZ},
			},
			Run: model.ConcurrencyConfig{
				Workers: pipeline.DefaultWorkers,
				Timeout: "30m",
				Retry:   pipeline.DefaultRetryConfig,
			},
		},
		Store:  StoreConfig{Path: "feax.db"},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Mode: "development"},
	}
}
