package config

import (
	"chroni/internal/matcher"
	"chroni/internal/model"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	OverwriteMode string        `mapstructure:"overwrite_mode"`
	OnlyNewest    []string      `mapstructure:"only_newest"`
	Include       []string      `mapstructure:"include"`
	Exclude       []string      `mapstructure:"exclude"`
	DryRun        bool          `mapstructure:"dry_run"`
	Workers       int           `mapstructure:"workers"`
	Strict        bool          `mapstructure:"strict"`
	History       bool          `mapstructure:"history"`
	DBPath        string        `mapstructure:"db_path"`
	DaemonPort    int           `mapstructure:"daemon_port"`
	Debounce      time.Duration `mapstructure:"debounce"`
}

var Default = Config{
	OverwriteMode: string(model.ModeFastComp),
	OnlyNewest:    []string{},
	Include:       []string{},
	Exclude:       []string{},
	Workers:       4,
	DBPath:        "",
	DaemonPort:    9101,
	Debounce:      500 * time.Millisecond,
}

// ConfigError is an invalid setting detected before any traversal starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	return filepath.Join(home, ".chroni"), nil
}

// Load layers defaults, the config file, CHRONI_* environment variables and
// any flags already bound to viper. An explicit file must exist; the default
// ~/.chroni/config.yaml is optional.
func Load(file string) (*Config, error) {
	viper.SetDefault("overwrite_mode", Default.OverwriteMode)
	viper.SetDefault("only_newest", Default.OnlyNewest)
	viper.SetDefault("include", Default.Include)
	viper.SetDefault("exclude", Default.Exclude)
	viper.SetDefault("dry_run", Default.DryRun)
	viper.SetDefault("workers", Default.Workers)
	viper.SetDefault("strict", Default.Strict)
	viper.SetDefault("history", Default.History)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("daemon_port", Default.DaemonPort)
	viper.SetDefault("debounce", Default.Debounce)

	viper.SetEnvPrefix("CHRONI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(dir)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok || file != "" {
			return nil, &ConfigError{Field: "config file", Err: err}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "config", Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	if cfg.DBPath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = filepath.Join(dir, "chroni.db")
	}

	return &cfg, nil
}

// Build validates cfg against the two roots and freezes it into Options.
func (c *Config) Build(src, dst string) (model.Options, error) {
	var opts model.Options

	mode, err := model.ParseOverwriteMode(c.OverwriteMode)
	if err != nil {
		return opts, &ConfigError{Field: "overwrite-mode", Err: err}
	}

	if _, err := matcher.Compile(c.OnlyNewest); err != nil {
		return opts, &ConfigError{Field: "only-newest", Err: err}
	}

	if c.Workers < 1 {
		return opts, &ConfigError{Field: "workers", Err: fmt.Errorf("must be at least 1, got %d", c.Workers)}
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return opts, &ConfigError{Field: "source", Err: err}
	}
	info, err := os.Stat(absSrc)
	if err != nil {
		return opts, &ConfigError{Field: "source", Err: err}
	}
	if !info.IsDir() {
		return opts, &ConfigError{Field: "source", Err: fmt.Errorf("%s is not a directory", absSrc)}
	}

	include, err := matcher.NewIncluder(c.Include)
	if err != nil {
		return opts, &ConfigError{Field: "include", Err: err}
	}
	for _, root := range include.Roots() {
		if _, err := os.Lstat(filepath.Join(absSrc, filepath.FromSlash(root))); err != nil {
			return opts, &ConfigError{Field: "include", Err: err}
		}
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return opts, &ConfigError{Field: "destination", Err: err}
	}
	if nested(absSrc, absDst) || nested(absDst, absSrc) {
		return opts, &ConfigError{Field: "destination", Err: fmt.Errorf("%s and %s overlap", absSrc, absDst)}
	}

	return model.Options{
		SrcRoot:    absSrc,
		DstRoot:    absDst,
		Mode:       mode,
		OnlyNewest: append([]string(nil), c.OnlyNewest...),
		Include:    append([]string(nil), c.Include...),
		Exclude:    append([]string(nil), c.Exclude...),
		DryRun:     c.DryRun,
		Workers:    c.Workers,
		Strict:     c.Strict,
	}, nil
}

// nested reports whether child is parent or lies below it.
func nested(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
