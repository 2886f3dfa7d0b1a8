// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/qaoa/internal/clients/runtime"
	"github.com/aristath/qaoa/internal/modules/account"
	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/reliability"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the run database and plots (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	Schedule  string // cron expression for periodic runs, empty disables
	GraphFile string // optional JSON edge list replacing the default graph
	Seed      int64

	Experiment ExperimentConfig
	IBM        IBMConfig
	Artifacts  ArtifactConfig
}

// ExperimentConfig holds the pipeline knobs.
type ExperimentConfig struct {
	Reps              int
	MaxIter           int
	Tol               float64
	EstimatorShots    int
	SamplerShots      int
	OptimizationLevel int
	Backend           string // "local", "cloud" or a backend name
	MinQubits         int
	DDEnable          bool
	DDSequence        string
	Twirling          bool
	Randomizations    string
	MaxSimQubits      int
}

// IBMConfig holds runtime credentials. The token is never compiled in; it comes from
// the environment or the saved account.
type IBMConfig struct {
	Channel     string
	Token       string
	Instance    string
	URL         string
	IAMURL      string
	AccountName string
	AccountFile string
}

// ArtifactConfig holds the S3-compatible bucket used for run artifacts.
type ArtifactConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QAOA_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	accountFile := getEnv("IBM_ACCOUNT_FILE", "")
	if accountFile == "" {
		if accountFile, err = account.DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Port:      getEnvAsInt("QAOA_PORT", 8001),
		Schedule:  getEnv("QAOA_SCHEDULE", ""),
		GraphFile: getEnv("QAOA_GRAPH_FILE", ""),
		Seed:      int64(getEnvAsInt("QAOA_SEED", 0)),
		Experiment: ExperimentConfig{
			Reps:              getEnvAsInt("QAOA_REPS", 2),
			MaxIter:           getEnvAsInt("QAOA_MAXITER", 5),
			Tol:               getEnvAsFloat("QAOA_TOL", 1e-2),
			EstimatorShots:    getEnvAsInt("QAOA_ESTIMATOR_SHOTS", 100),
			SamplerShots:      getEnvAsInt("QAOA_SAMPLER_SHOTS", 10000),
			OptimizationLevel: getEnvAsInt("QAOA_OPT_LEVEL", 3),
			Backend:           getEnv("QAOA_BACKEND", experiment.BackendLocal),
			MinQubits:         getEnvAsInt("QAOA_MIN_QUBITS", 127),
			DDEnable:          getEnvAsBool("QAOA_DD_ENABLE", true),
			DDSequence:        getEnv("QAOA_DD_SEQUENCE", "XY4"),
			Twirling:          getEnvAsBool("QAOA_TWIRLING", true),
			Randomizations:    getEnv("QAOA_RANDOMIZATIONS", "auto"),
			MaxSimQubits:      getEnvAsInt("QAOA_MAX_SIM_QUBITS", 0),
		},
		IBM: IBMConfig{
			Channel:     getEnv("IBM_CHANNEL", runtime.ChannelIBMCloud),
			Token:       getEnv("IBM_API_TOKEN", ""),
			Instance:    getEnv("IBM_INSTANCE", ""),
			URL:         getEnv("IBM_RUNTIME_URL", ""),
			IAMURL:      getEnv("IBM_IAM_URL", ""),
			AccountName: getEnv("IBM_ACCOUNT_NAME", account.DefaultName),
			AccountFile: accountFile,
		},
		Artifacts: ArtifactConfig{
			Bucket:    getEnv("ARTIFACT_BUCKET", ""),
			Endpoint:  getEnv("ARTIFACT_ENDPOINT", ""),
			Region:    getEnv("ARTIFACT_REGION", "auto"),
			AccessKey: getEnv("ARTIFACT_ACCESS_KEY", ""),
			SecretKey: getEnv("ARTIFACT_SECRET_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromAccount fills missing runtime credentials from the saved account.
// Environment values take precedence; a missing account is not an error.
func (c *Config) UpdateFromAccount(store *account.Store) error {
	if c.IBM.Token != "" {
		return nil
	}
	acct, err := store.Load(c.IBM.AccountName)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load account %q: %w", c.IBM.AccountName, err)
	}

	c.IBM.Channel = acct.Channel
	c.IBM.Token = acct.Token
	if c.IBM.Instance == "" {
		c.IBM.Instance = acct.Instance
	}
	if c.IBM.URL == "" {
		c.IBM.URL = acct.URL
	}
	return nil
}

// Validate checks that the configured values are usable
func (c *Config) Validate() error {
	e := c.Experiment
	if e.Reps < 1 {
		return fmt.Errorf("QAOA_REPS must be at least 1, got %d", e.Reps)
	}
	if e.MaxIter < 1 {
		return fmt.Errorf("QAOA_MAXITER must be at least 1, got %d", e.MaxIter)
	}
	if e.Tol <= 0 {
		return fmt.Errorf("QAOA_TOL must be positive, got %g", e.Tol)
	}
	if e.SamplerShots < 1 {
		return fmt.Errorf("QAOA_SAMPLER_SHOTS must be at least 1, got %d", e.SamplerShots)
	}
	if e.EstimatorShots < 0 {
		return fmt.Errorf("QAOA_ESTIMATOR_SHOTS cannot be negative, got %d", e.EstimatorShots)
	}
	if e.OptimizationLevel < 0 || e.OptimizationLevel > 3 {
		return fmt.Errorf("QAOA_OPT_LEVEL must be between 0 and 3, got %d", e.OptimizationLevel)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("QAOA_PORT out of range: %d", c.Port)
	}
	switch c.IBM.Channel {
	case runtime.ChannelIBMCloud, runtime.ChannelIBMQuantum:
	default:
		return fmt.Errorf("IBM_CHANNEL must be %q or %q, got %q", runtime.ChannelIBMCloud, runtime.ChannelIBMQuantum, c.IBM.Channel)
	}
	return nil
}

// ExperimentSettings converts the environment knobs into pipeline settings.
func (c *Config) ExperimentSettings() experiment.Config {
	e := c.Experiment
	return experiment.Config{
		Reps:                e.Reps,
		MaxIter:             e.MaxIter,
		Tol:                 e.Tol,
		EstimatorShots:      e.EstimatorShots,
		SamplerShots:        e.SamplerShots,
		OptimizationLevel:   e.OptimizationLevel,
		Backend:             e.Backend,
		MinQubits:           e.MinQubits,
		DynamicalDecoupling: e.DDEnable,
		DDSequence:          e.DDSequence,
		Twirling:            e.Twirling,
		Randomizations:      e.Randomizations,
		Seed:                c.Seed,
	}
}

// Runtime returns the runtime client settings.
func (c *Config) Runtime() runtime.Config {
	return runtime.Config{
		Channel:  c.IBM.Channel,
		Token:    c.IBM.Token,
		Instance: c.IBM.Instance,
		URL:      c.IBM.URL,
		IAMURL:   c.IBM.IAMURL,
		Timeout:  30 * time.Second,
	}
}

// Uploader returns the artifact bucket settings.
func (c *Config) Uploader() reliability.UploaderConfig {
	a := c.Artifacts
	return reliability.UploaderConfig{
		Bucket:    a.Bucket,
		Endpoint:  a.Endpoint,
		Region:    a.Region,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
	}
}

// DatabasePath returns the run history database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// PlotDir returns the directory plots are written to.
func (c *Config) PlotDir() string {
	return filepath.Join(c.DataDir, "plots")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
