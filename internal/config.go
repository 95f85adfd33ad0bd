package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/haatos/simple-release/internal/util"
)

type Configuration struct {
	TagPrefix    string          `yaml:"tag_prefix"`
	StrictSemver bool            `yaml:"strict_semver"`
	Concurrency  int             `yaml:"concurrency"`
	Registry     RegistryConfig  `yaml:"registry"`
	Packages     []PackageConfig `yaml:"packages"`
}

type RegistryConfig struct {
	URL               string        `yaml:"url"`
	Attempts          int           `yaml:"attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`
	LookupTimeout     time.Duration `yaml:"lookup_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	KnownHosts        string        `yaml:"known_hosts"`
}

type PackageConfig struct {
	Name     string      `yaml:"name"`
	Root     string      `yaml:"root"`
	Artifact string      `yaml:"artifact"`
	Build    BuildConfig `yaml:"build"`
}

type BuildConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Env     map[string]string `yaml:"env"`
	Debug   []string          `yaml:"debug"`
	Release []string          `yaml:"release"`
}

func DefaultConfiguration() *Configuration {
	return &Configuration{
		TagPrefix:   DefaultTagPrefix,
		Concurrency: 4,
		Registry: RegistryConfig{
			URL:               "http://localhost:8080",
			Attempts:          3,
			InitialBackoff:    time.Second,
			AttemptTimeout:    60 * time.Second,
			LookupTimeout:     5 * time.Second,
			RequestsPerSecond: 1,
		},
	}
}

// LoadConfiguration reads the project config. A missing file yields the
// defaults with a single package named after the project directory. Zero
// values in the file are replaced by defaults, so an empty tag_prefix means "v".
func LoadConfiguration(projectRoot, path string) (*Configuration, error) {
	if path == "" {
		path = filepath.Join(projectRoot, ConfigFileName)
	}
	config := new(Configuration)

	exists, _ := util.PathExists(path)
	if exists {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("err reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, config); err != nil {
			return nil, fmt.Errorf("err parsing config %s: %w", path, err)
		}
	}

	config.applyDefaults()
	if len(config.Packages) == 0 {
		abs, err := filepath.Abs(projectRoot)
		if err != nil {
			return nil, err
		}
		config.Packages = []PackageConfig{{Name: filepath.Base(abs)}}
	}
	for i := range config.Packages {
		config.Packages[i].applyDefaults()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Configuration) applyDefaults() {
	d := DefaultConfiguration()
	if c.TagPrefix == "" {
		c.TagPrefix = d.TagPrefix
	}
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Registry.URL == "" {
		c.Registry.URL = d.Registry.URL
	}
	if c.Registry.Attempts == 0 {
		c.Registry.Attempts = d.Registry.Attempts
	}
	if c.Registry.InitialBackoff == 0 {
		c.Registry.InitialBackoff = d.Registry.InitialBackoff
	}
	if c.Registry.AttemptTimeout == 0 {
		c.Registry.AttemptTimeout = d.Registry.AttemptTimeout
	}
	if c.Registry.LookupTimeout == 0 {
		c.Registry.LookupTimeout = d.Registry.LookupTimeout
	}
	if c.Registry.RequestsPerSecond == 0 {
		c.Registry.RequestsPerSecond = d.Registry.RequestsPerSecond
	}
}

func (pc *PackageConfig) applyDefaults() {
	if pc.Root == "" {
		pc.Root = "."
	}
	if pc.Artifact == "" {
		pc.Artifact = "target/package/{name}-{version}.crate"
	}
	if pc.Build.Timeout == 0 {
		pc.Build.Timeout = 30 * time.Minute
	}
	if len(pc.Build.Debug) == 0 {
		pc.Build.Debug = []string{"cargo", "package", "--no-verify", "--allow-dirty"}
	}
	if len(pc.Build.Release) == 0 {
		pc.Build.Release = []string{"cargo", "package", "--allow-dirty"}
	}
}

func (c *Configuration) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}
	if c.Registry.Attempts < 1 {
		errs = append(errs, errors.New("registry.attempts must be at least 1"))
	}
	u, err := url.Parse(c.Registry.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("registry.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "sftp":
		errs = append(errs, fmt.Errorf("registry.url: unsupported scheme %q", u.Scheme))
	}

	seen := make(map[string]bool)
	for i, p := range c.Packages {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("packages[%d]: name is required", i))
			continue
		}
		if !PackageNamePattern.MatchString(p.Name) {
			errs = append(errs, fmt.Errorf("packages[%d]: invalid name %q", i, p.Name))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("packages[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
	}
	return errors.Join(errs...)
}

// Package returns the package config by name.
func (c *Configuration) Package(name string) (*PackageConfig, bool) {
	for i := range c.Packages {
		if c.Packages[i].Name == name {
			return &c.Packages[i], true
		}
	}
	return nil, false
}

// Command returns the argv for a build mode.
func (bc BuildConfig) Command(mode string) []string {
	if mode == "debug" {
		return bc.Debug
	}
	return bc.Release
}

// Expand substitutes {name} and {version} placeholders.
func (pc PackageConfig) Expand(s, version string) string {
	return strings.NewReplacer("{name}", pc.Name, "{version}", version).Replace(s)
}
