// Package config provides configuration loading and management for the driver.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/telemetry"
)

const (
	// EnvPrefix is the environment variable prefix for driver settings.
	EnvPrefix = "BSOSE_SYNC"

	// WorkerKindExec invokes the worker as a local binary.
	WorkerKindExec = "exec"

	// WorkerKindDocker invokes the worker as a container image.
	WorkerKindDocker = "docker"
)

const (
	// DefaultStride is the reference chunk width of the latitude dimension.
	DefaultStride = 10

	// DefaultRetryDelay is the reference pause between failed-attempt retries.
	DefaultRetryDelay = 300 * time.Second

	// DefaultDestinationEnv is the environment variable the worker reads the
	// destination store address from.
	DefaultDestinationEnv = "MONGODB_URI"

	// DefaultStateDir is where run status and the run lock are kept.
	DefaultStateDir = "./state"
)

// destinationURIEnv is the driver-side environment variable consulted when
// the destination address is not in the config file.
const destinationURIEnv = "BSOSE_SYNC_DESTINATION_URI"

// Option defines the interface for configuration loader options.
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration.
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file.
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure.
type Config struct {
	// Years bounds the outer enumeration dimension, inclusive.
	Years YearsConfig `yaml:"years"`

	// Chunk controls the inner (latitude range) partitioning.
	Chunk ChunkConfig `yaml:"chunk"`

	// Retry controls the fixed-delay retry policy.
	Retry *RetryConfig `yaml:"retry,omitempty"`

	// Worker identifies and parameterizes the external sync worker.
	Worker WorkerConfig `yaml:"worker"`

	// Destination is the data store the worker writes to.
	Destination *DestinationConfig `yaml:"destination,omitempty"`

	// StateDir is the directory for the run status file and run lock.
	// Defaults to "./state".
	StateDir string `yaml:"stateDir,omitempty"`

	// Telemetry configures metrics export. Disabled when omitted.
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// YearsConfig is an inclusive year interval.
type YearsConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// ChunkConfig defines the latitude-range partitioning.
type ChunkConfig struct {
	// Stride is the chunk width. Defaults to 10.
	Stride int `yaml:"stride,omitempty"`

	// FinalBound is the true exclusive upper limit of the latitude index
	// dimension (588 in the reference deployment). The last chunk is clamped
	// to it.
	FinalBound int `yaml:"finalBound"`
}

// RetryConfig defines the retry policy between failed worker invocations.
type RetryConfig struct {
	// Delay is the fixed pause between a failed attempt and the next retry
	// of the same unit (e.g., "300s"). There is no backoff growth and no
	// retry cap.
	Delay string `yaml:"delay,omitempty"`
}

// WorkerConfig identifies the external worker and its fixed arguments.
type WorkerConfig struct {
	// Kind selects how the worker is invoked: "exec" or "docker".
	Kind string `yaml:"kind"`

	// Binary is the worker executable path (exec kind).
	Binary string `yaml:"binary,omitempty"`

	// Image is the worker container image reference (docker kind).
	Image string `yaml:"image,omitempty"`

	// Pull requests an image pull before the first invocation (docker kind).
	Pull bool `yaml:"pull,omitempty"`

	// DatasetPathTemplate maps a year to the worker's first argument.
	// The literal token {year} is replaced with the unit's year.
	DatasetPathTemplate string `yaml:"datasetPathTemplate"`

	// DatasetMount is a host directory bind-mounted into worker containers
	// so the dataset path is visible at the same location (docker kind).
	DatasetMount string `yaml:"datasetMount,omitempty"`

	// Variable is the physical quantity to ingest, passed verbatim to every
	// invocation (e.g., "TRAC04").
	Variable string `yaml:"variable"`

	// LonStart and LonEnd bound the secondary (longitude) dimension. They
	// are constant across all units; the driver does not chunk longitude.
	// LonEnd defaults are not applied: the spatial extent is dataset
	// specific (2160 in the reference deployment) and must be configured.
	LonStart int `yaml:"lonStart,omitempty"`
	LonEnd   int `yaml:"lonEnd"`
}

// DestinationConfig locates the data store the worker writes to. The address
// is handed to the worker through its environment, never on the command line.
type DestinationConfig struct {
	// URI is the destination store address (e.g., a MongoDB connection URI).
	URI string `yaml:"uri,omitempty"`

	// URIFile is the path to a file containing the address. Recommended for
	// production deployments; trailing whitespace is trimmed.
	URIFile string `yaml:"uriFile,omitempty"`

	// Env is the name of the environment variable the worker reads the
	// address from. Defaults to MONGODB_URI.
	Env string `yaml:"env,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ScheduleParams converts the enumeration settings to schedule parameters,
// applying the default stride.
func (c *Config) ScheduleParams() schedule.Params {
	stride := c.Chunk.Stride
	if stride == 0 {
		stride = DefaultStride
	}
	return schedule.Params{
		StartYear:  c.Years.Start,
		EndYear:    c.Years.End,
		Stride:     stride,
		FinalBound: c.Chunk.FinalBound,
	}
}

// RetryDelay returns the configured retry delay, or the 300s default.
func (c *Config) RetryDelay() time.Duration {
	if c.Retry == nil || c.Retry.Delay == "" {
		return DefaultRetryDelay
	}
	delay, err := time.ParseDuration(c.Retry.Delay)
	if err != nil {
		// Validate rejects unparseable delays; this is unreachable for a
		// validated config.
		return DefaultRetryDelay
	}
	return delay
}

// GetStateDir returns the state directory, using the default if unset.
func (c *Config) GetStateDir() string {
	if c.StateDir == "" {
		return DefaultStateDir
	}
	return c.StateDir
}

// GetDestinationEnv returns the name of the environment variable the worker
// reads the destination address from.
func (c *Config) GetDestinationEnv() string {
	if c.Destination == nil || c.Destination.Env == "" {
		return DefaultDestinationEnv
	}
	return c.Destination.Env
}

// GetDestinationURI returns the destination store address using the
// following priority:
//  1. Read from Destination.URIFile if specified
//  2. Destination.URI if specified
//  3. The BSOSE_SYNC_DESTINATION_URI environment variable
func (c *Config) GetDestinationURI() (string, error) {
	if c.Destination != nil && c.Destination.URIFile != "" {
		// Use filepath.Clean to prevent path traversal attacks.
		cleanPath := filepath.Clean(c.Destination.URIFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read destination URI from file %s: %w", c.Destination.URIFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if c.Destination != nil && c.Destination.URI != "" {
		return c.Destination.URI, nil
	}

	if envURI := os.Getenv(destinationURIEnv); envURI != "" {
		return envURI, nil
	}

	return "", fmt.Errorf(
		"no destination store address configured: set destination.uri, destination.uriFile or the %s environment variable",
		destinationURIEnv,
	)
}

// Validate performs validation on the configuration. It fails fast: a config
// that does not validate never leads to a worker invocation.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.ScheduleParams().Validate(); err != nil {
		return err
	}

	if err := validateRetry(c.Retry); err != nil {
		return err
	}

	if err := validateWorker(&c.Worker); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateRetry checks the retry delay parses to a positive duration.
func validateRetry(retry *RetryConfig) error {
	if retry == nil || retry.Delay == "" {
		return nil
	}
	delay, err := time.ParseDuration(retry.Delay)
	if err != nil {
		return fmt.Errorf("retry.delay must be a valid duration (e.g., '300s', '5m'): %w", err)
	}
	if delay <= 0 {
		return fmt.Errorf("retry.delay must be positive, got %s", delay)
	}
	return nil
}

// validateWorker checks the worker invocation settings.
func validateWorker(w *WorkerConfig) error {
	switch w.Kind {
	case WorkerKindExec:
		if w.Binary == "" {
			return fmt.Errorf("worker.binary is required when worker.kind is %s", WorkerKindExec)
		}
	case WorkerKindDocker:
		if w.Image == "" {
			return fmt.Errorf("worker.image is required when worker.kind is %s", WorkerKindDocker)
		}
	case "":
		return fmt.Errorf("worker.kind is required (%s or %s)", WorkerKindExec, WorkerKindDocker)
	default:
		return fmt.Errorf("worker.kind must be %s or %s, got %s", WorkerKindExec, WorkerKindDocker, w.Kind)
	}

	if w.DatasetPathTemplate == "" {
		return fmt.Errorf("worker.datasetPathTemplate is required")
	}
	if !strings.Contains(w.DatasetPathTemplate, "{year}") {
		return fmt.Errorf("worker.datasetPathTemplate must contain the {year} token, got %q", w.DatasetPathTemplate)
	}
	if w.Variable == "" {
		return fmt.Errorf("worker.variable is required")
	}
	if w.LonStart < 0 {
		return fmt.Errorf("worker.lonStart must not be negative, got %d", w.LonStart)
	}
	if w.LonEnd <= w.LonStart {
		return fmt.Errorf("worker.lonEnd must be greater than worker.lonStart, got %d <= %d", w.LonEnd, w.LonStart)
	}

	return nil
}
