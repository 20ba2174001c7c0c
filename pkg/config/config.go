// Package config holds the gateway's boot-time configuration. Values come
// from defaults, then a YAML file, then the environment; flags are applied by
// the binary on top. A Config is not modified after the server starts.
package config

import (
	"os"
	"time"

	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

const (
	// DefaultSecretEnv names the environment variable holding the shared secret.
	DefaultSecretEnv = "TIDEWAVE_SECRET"

	// DefaultPrefix is the path prefix the gateway owns.
	DefaultPrefix = "/tidewave"
)

// Config represents the complete gateway configuration
type Config struct {
	ListenAddr        string            `yaml:"listen_addr"`
	Prefix            string            `yaml:"prefix"`
	ProjectName       string            `yaml:"project_name"`
	FrameworkType     string            `yaml:"framework_type"`
	Team              map[string]string `yaml:"team"`
	Tier              tier.Tier         `yaml:"tier"`
	AllowRemoteAccess bool              `yaml:"allow_remote_access"`
	LocalDev          bool              `yaml:"local_dev"`
	SecretEnv         string            `yaml:"secret_env"` // name of the env var, never the secret
	ProjectRoot       string            `yaml:"project_root"`
	Logs              LogsConfig        `yaml:"logs"`
	Shell             ShellConfig       `yaml:"shell"`
	Logging           LoggingConfig     `yaml:"logging"`
}

// LogsConfig locates the files served by the log tools.
type LogsConfig struct {
	AppLog         string `yaml:"app_log"`
	JobFailuresLog string `yaml:"job_failures_log"`
}

// ShellConfig bounds the command streaming endpoint.
type ShellConfig struct {
	MaxOutputBytes int64         `yaml:"max_output_bytes"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:    ":4000",
		Prefix:        DefaultPrefix,
		ProjectName:   defaultProjectName(),
		FrameworkType: "go",
		Team:          map[string]string{},
		Tier:          tier.Full,
		SecretEnv:     DefaultSecretEnv,
		ProjectRoot:   ".",
		Logs: LogsConfig{
			AppLog:         "log/development.log",
			JobFailuresLog: "log/job_failures.log",
		},
		Shell: ShellConfig{
			MaxOutputBytes: 100 << 20,
			PollInterval:   100 * time.Millisecond,
			MaxBodyBytes:   1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Secret returns the shared secret from the environment variable named by
// SecretEnv. Empty means no secret is configured.
func (c *Config) Secret() string {
	name := c.SecretEnv
	if name == "" {
		name = DefaultSecretEnv
	}
	return os.Getenv(name)
}

func defaultProjectName() string {
	wd, err := os.Getwd()
	if err != nil {
		return "app"
	}
	return baseName(wd)
}
