package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"turing-log-tail/internal/logstream"
	"turing-log-tail/internal/model"
)

const (
	// DefaultPath is the configuration file looked up when none is given.
	DefaultPath = "logtail.yaml"
	// DefaultAPIBaseURL is the API server the viewer talks to by default.
	DefaultAPIBaseURL = "http://localhost:8080/v1"
	// DefaultTailLines is the starting point of a new stream.
	DefaultTailLines = "1000"
)

// ErrMissingResource is returned when the resource to tail is not identified.
var ErrMissingResource = errors.New("project_id, resource and resource_id are required")

// Environment variables overriding the file.
const (
	EnvAPIBaseURL = "LOGTAIL_API_BASE_URL"
	EnvLogLevel   = "LOGTAIL_LOG_LEVEL"
	EnvProjectID  = "LOGTAIL_PROJECT_ID"
)

// Config holds the log viewer configuration
type Config struct {
	// APIBaseURL is the base URL of the platform API, including its version prefix.
	APIBaseURL string `yaml:"api_base_url,omitempty"`
	ProjectID  int    `yaml:"project_id,omitempty"`
	// Resource is "routers" or "jobs".
	Resource   model.Resource `yaml:"resource,omitempty"`
	ResourceID int            `yaml:"resource_id,omitempty"`
	// ComponentType defaults to the first component of the resource.
	ComponentType string `yaml:"component_type,omitempty"`
	// TailLines is "100", "1000" or "start".
	TailLines string `yaml:"tail_lines,omitempty"`
	// PollInterval is a Go duration; defaults to the resource's cadence.
	PollInterval string `yaml:"poll_interval,omitempty"`
	BatchSize    int    `yaml:"batch_size,omitempty"`
	// PayloadExpression is a JMESPath projection applied to JSON payloads.
	PayloadExpression string `yaml:"payload_expression,omitempty"`
	// Timezone is an IANA zone name for rendered timestamps; empty means local.
	Timezone       string `yaml:"timezone,omitempty"`
	Search         string `yaml:"search,omitempty"`
	RequestTimeout string `yaml:"request_timeout,omitempty"`
	LogLevel       string `yaml:"log_level,omitempty"`
	LogFormat      string `yaml:"log_format,omitempty"`
}

// prepareConfig applies defaults for unset fields
func prepareConfig(cfg *Config) {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Resource == "" {
		cfg.Resource = model.ResourceRouters
	}
	if cfg.ComponentType == "" {
		cfg.ComponentType = cfg.Resource.DefaultComponent()
	}
	if cfg.TailLines == "" {
		cfg.TailLines = DefaultTailLines
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = logstream.DefaultBatchSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	cfg := &Config{}
	prepareConfig(cfg)
	return cfg
}

// LoadConfig loads the configuration from a YAML file and the environment.
// A missing file is not an error: defaults and environment are used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	prepareConfig(cfg)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvProjectID); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvProjectID, v, err)
		}
		c.ProjectID = id
	}
	return nil
}

// SaveConfig writes the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration identifies a resource and that every
// value parses.
func (c *Config) Validate() error {
	if c.ProjectID <= 0 || c.ResourceID <= 0 || c.Resource == "" {
		return ErrMissingResource
	}
	if _, err := model.ParseResource(string(c.Resource)); err != nil {
		return err
	}
	if !c.Resource.HasComponent(c.ComponentType) {
		return fmt.Errorf("%w: %q (want one of %v)", logstream.ErrUnknownComponent, c.ComponentType, c.Resource.Components())
	}
	if _, err := logstream.ParseTailLines(c.TailLines); err != nil {
		return err
	}
	if _, err := c.PollIntervalDuration(); err != nil {
		return err
	}
	if _, err := c.RequestTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// PollIntervalDuration returns the poll cadence, falling back to the resource default.
func (c *Config) PollIntervalDuration() (time.Duration, error) {
	if c.PollInterval == "" {
		return c.Resource.DefaultPollInterval(), nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid poll_interval %q", c.PollInterval)
	}
	return d, nil
}

// RequestTimeoutDuration returns the per-request timeout, zero meaning the client default.
func (c *Config) RequestTimeoutDuration() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid request_timeout %q", c.RequestTimeout)
	}
	return d, nil
}

// Location resolves the display timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LogsPath returns the logs endpoint of the configured resource.
func (c *Config) LogsPath() model.LogsPath {
	return model.LogsPath{
		ProjectID:  strconv.Itoa(c.ProjectID),
		Resource:   c.Resource,
		ResourceID: strconv.Itoa(c.ResourceID),
	}
}

// InitialQuery returns the query a new stream starts with.
func (c *Config) InitialQuery() logstream.Query {
	tail, _ := logstream.ParseTailLines(c.TailLines)
	return logstream.Query{ComponentType: c.ComponentType, TailLines: tail}
}

// StreamConfig returns the engine settings. A component change restarts
// tailing at the configured tail_lines.
func (c *Config) StreamConfig() logstream.Config {
	interval, _ := c.PollIntervalDuration()
	tail, _ := logstream.ParseTailLines(c.TailLines)
	return logstream.Config{
		PollInterval:     interval,
		BatchSize:        c.BatchSize,
		DefaultTailLines: tail,
		Resource:         c.Resource,
	}
}

// FilterUpdate returns the filter change that turns c into next, and whether
// there is one. A component change always carries next's tail_lines so the
// stream restarts where the file says.
func (c *Config) FilterUpdate(next *Config) (logstream.QueryUpdate, bool) {
	var u logstream.QueryUpdate
	changed := false
	componentChanged := next.ComponentType != c.ComponentType
	if componentChanged {
		component := next.ComponentType
		u.ComponentType = &component
		changed = true
	}
	if componentChanged || next.TailLines != c.TailLines {
		if tail, err := logstream.ParseTailLines(next.TailLines); err == nil {
			u.TailLines = &tail
			changed = true
		}
	}
	return u, changed
}
