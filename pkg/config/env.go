package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

// Environment variables read by ApplyEnv.
const (
	EnvAddr              = "TIDEWAVE_ADDR"
	EnvTier              = "TIDEWAVE_TIER"
	EnvAllowRemoteAccess = "TIDEWAVE_ALLOW_REMOTE_ACCESS"
	EnvLocalDev          = "TIDEWAVE_LOCAL_DEV"
	EnvProjectName       = "TIDEWAVE_PROJECT_NAME"
	EnvAppLog            = "TIDEWAVE_APP_LOG"
	EnvJobFailuresLog    = "TIDEWAVE_JOB_FAILURES_LOG"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays set, non-blank environment variables onto c. A nil
// lookup reads the process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAddr); ok {
		c.ListenAddr = v
	}
	if v, ok := get(EnvTier); ok {
		c.Tier = tier.Tier(strings.ToLower(v))
	}
	if v, ok := get(EnvProjectName); ok {
		c.ProjectName = v
	}
	if v, ok := get(EnvAppLog); ok {
		c.Logs.AppLog = v
	}
	if v, ok := get(EnvJobFailuresLog); ok {
		c.Logs.JobFailuresLog = v
	}

	var errs []string
	for key, dst := range map[string]*bool{
		EnvAllowRemoteAccess: &c.AllowRemoteAccess,
		EnvLocalDev:          &c.LocalDev,
	} {
		v, ok := get(key)
		if !ok {
			continue
		}
		b, err := ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		*dst = b
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseBool accepts the usual spellings of true and false.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}
