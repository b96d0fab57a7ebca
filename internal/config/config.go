// Package config loads and validates the codegend configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	cerrors "git.home.luguber.info/inful/codegend/internal/errors"
)

// Config represents the application configuration
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Generator GeneratorConfig `yaml:"generator"`
	Compiler  CompilerConfig  `yaml:"compiler"`
	Serve     ServeConfig     `yaml:"serve"`
	Notify    NotifyConfig    `yaml:"notify"`
	Journal   JournalConfig   `yaml:"journal"`
}

// ProjectConfig describes the project the daemon coordinates.
type ProjectConfig struct {
	// Root is the project source root; the compiler sees <root>/lib/.
	Root string `yaml:"root"`
	// GeneratedRoot is where the generation tool writes output; the compiler
	// sees <generated-root>/lib/.
	GeneratedRoot string `yaml:"generated_root"`
	// PackagesPath is the generated package map used for package resolution
	// instead of the project's own. Defaults to
	// <generated-root>/package_config.json.
	PackagesPath string `yaml:"packages_path,omitempty"`
}

// GeneratorConfig configures the generation tool invocation.
type GeneratorConfig struct {
	// Command is the argv of the generation tool, run in the project root.
	Command []string `yaml:"command"`
	// BuildScript is the path of the build script the tool is generated from.
	BuildScript string `yaml:"build_script,omitempty"`
}

// CompilerConfig carries opaque pass-through options for the underlying
// compiler session.
type CompilerConfig struct {
	// Command is the argv of the underlying compiler binary.
	Command                    []string `yaml:"command,omitempty"`
	IncrementalSeed            string   `yaml:"incremental_seed,omitempty"`
	TrackWidgetCreation        bool     `yaml:"track_widget_creation"`
	UnsafePackageSerialization bool     `yaml:"unsafe_package_serialization"`
	ExtraOptions               []string `yaml:"extra_options,omitempty"`
}

// ServeConfig configures daemon/watch mode.
type ServeConfig struct {
	// Watch enables filesystem watching of the project source tree.
	Watch bool `yaml:"watch"`
	// DebounceMillis is the quiet period applied to watch events.
	DebounceMillis int `yaml:"debounce_millis,omitempty"`
	// RebuildIntervalMinutes forces a fresh generation cycle on a schedule.
	// Zero disables the scheduled rebuild.
	RebuildIntervalMinutes int `yaml:"rebuild_interval_minutes,omitempty"`
	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9610").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// NotifyConfig configures optional NATS status fan-out.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// JournalConfig configures the SQLite cycle journal.
type JournalConfig struct {
	// Path of the journal database. Empty disables persistence;
	// ":memory:" keeps the journal for the process lifetime only.
	Path string `yaml:"path,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing process env wins.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, cerrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryConfig, cerrors.SeverityFatal, "failed to read config file")
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryConfig, cerrors.SeverityFatal, "failed to unmarshal config")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Project.GeneratedRoot == "" && c.Project.Root != "" {
		c.Project.GeneratedRoot = filepath.Join(c.Project.Root, ".codegend", "generated")
	}
	if c.Project.PackagesPath == "" && c.Project.GeneratedRoot != "" {
		c.Project.PackagesPath = filepath.Join(c.Project.GeneratedRoot, "package_config.json")
	}
	if c.Serve.DebounceMillis <= 0 {
		c.Serve.DebounceMillis = 250
	}
	if c.Notify.Enabled && c.Notify.Subject == "" {
		c.Notify.Subject = "codegend.status"
	}
}

// Validate checks required fields and field consistency.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return cerrors.ConfigRequired("project.root")
	}
	if len(c.Generator.Command) == 0 {
		return cerrors.ConfigRequired("generator.command")
	}
	if c.Notify.Enabled && c.Notify.URL == "" {
		return cerrors.ValidationFailed("notify.url", "required when notify.enabled is true")
	}
	if c.Serve.RebuildIntervalMinutes < 0 {
		return cerrors.ValidationFailed("serve.rebuild_interval_minutes", "must not be negative")
	}
	return nil
}

// loadEnvFiles loads environment variables from .env/.env.local. The first
// file that parses wins; process environment is never overwritten.
func loadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", p)
			return
		}
	}
}
