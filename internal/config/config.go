package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/schaermu/buildstamp/internal/artifact"
	"github.com/schaermu/buildstamp/internal/reconcile"
	"github.com/schaermu/buildstamp/internal/template"
	"github.com/schaermu/buildstamp/internal/version"
)

// Hash length bounds accepted by git rev-parse --short
const (
	MinHashLength = 4
	MaxHashLength = 40
)

// Config represents the complete buildstamp configuration
type Config struct {
	RepoDir       string           `yaml:"repo_dir" toml:"repo_dir"`
	Placeholder   string           `yaml:"placeholder" toml:"placeholder"`
	SkipHash      string           `yaml:"skip_hash" toml:"skip_hash"`
	HashLength    int              `yaml:"hash_length" toml:"hash_length"`
	Cleanup       bool             `yaml:"cleanup" toml:"cleanup"`
	CleanupPolicy reconcile.Policy `yaml:"cleanup_policy" toml:"cleanup_policy"`
	Protect       []string         `yaml:"protect" toml:"protect"`
	Manifest      string           `yaml:"manifest" toml:"manifest"`
	Output        OutputConfig     `yaml:"output" toml:"output"`
	Regex         RegexConfig      `yaml:"regex" toml:"regex"`
	Build         BuildConfig      `yaml:"build" toml:"build"`
}

// OutputConfig describes where and under which names the build writes artifacts
type OutputConfig struct {
	Path          string `yaml:"path" toml:"path"`
	Filename      string `yaml:"filename" toml:"filename"`
	ChunkFilename string `yaml:"chunk_filename" toml:"chunk_filename"`
}

// RegexConfig holds pre-supplied cleanup patterns per template
type RegexConfig struct {
	Filename      string `yaml:"filename" toml:"filename"`
	ChunkFilename string `yaml:"chunk_filename" toml:"chunk_filename"`
}

// BuildConfig configures the build command run by "buildstamp run"
type BuildConfig struct {
	Command []string `yaml:"command" toml:"command"`
	Dir     string   `yaml:"dir" toml:"dir"`
}

// Load reads and parses the configuration file. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Relative paths are resolved against the config file's directory
	cfg.resolvePaths(filepath.Dir(path))

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.RepoDir = os.ExpandEnv(c.RepoDir)
	c.SkipHash = os.ExpandEnv(c.SkipHash)
	c.Manifest = os.ExpandEnv(c.Manifest)
	c.Output.Path = os.ExpandEnv(c.Output.Path)
	c.Build.Dir = os.ExpandEnv(c.Build.Dir)
	for i, arg := range c.Build.Command {
		c.Build.Command[i] = os.ExpandEnv(arg)
	}
}

// resolvePaths makes relative filesystem paths relative to base
func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.RepoDir = resolve(c.RepoDir)
	c.Manifest = resolve(c.Manifest)
	c.Output.Path = resolve(c.Output.Path)
	c.Build.Dir = resolve(c.Build.Dir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Placeholder == "" {
		c.Placeholder = template.DefaultPlaceholder
	}
	if c.HashLength == 0 {
		c.HashLength = version.DefaultLength
	}
	if c.CleanupPolicy == "" {
		c.CleanupPolicy = reconcile.PolicyFailFast
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	if c.Output.Filename == "" && c.Output.ChunkFilename == "" {
		return fmt.Errorf("at least one of output.filename or output.chunk_filename is required")
	}

	if c.SkipHash == "" && (c.HashLength < MinHashLength || c.HashLength > MaxHashLength) {
		return fmt.Errorf("hash_length must be between %d and %d: %d", MinHashLength, MaxHashLength, c.HashLength)
	}

	switch c.CleanupPolicy {
	case reconcile.PolicyFailFast, reconcile.PolicyBestEffort:
		// valid
	default:
		return fmt.Errorf("invalid cleanup_policy: %s (must be fail-fast or best-effort)", c.CleanupPolicy)
	}

	if _, err := artifact.NewProtectSet(c.Protect); err != nil {
		return fmt.Errorf("protect: %w", err)
	}

	for key, pattern := range c.Regex.ByKey() {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("regex.%s: %w", key, err)
		}
	}

	if len(c.Build.Command) > 0 && strings.TrimSpace(c.Build.Command[0]) == "" {
		return fmt.Errorf("build.command must start with a program name")
	}

	return nil
}

// ByKey returns the configured patterns keyed by template key
func (r RegexConfig) ByKey() map[string]string {
	out := make(map[string]string, 2)
	if r.Filename != "" {
		out[template.KeyFilename] = r.Filename
	}
	if r.ChunkFilename != "" {
		out[template.KeyChunkFilename] = r.ChunkFilename
	}
	return out
}

// TokenSource describes where the version token comes from
func (c *Config) TokenSource() string {
	if c.SkipHash != "" {
		return "explicit"
	}
	return "git"
}
