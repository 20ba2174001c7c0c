package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
	"github.com/DeBrosOfficial/tidewave/pkg/tlsutil"
)

// options are settings that only exist on the command line.
type options struct {
	configPath  string
	upstream    string
	upstreamTLS tlsutil.Options
	showHelp    bool
}

// parseConfig resolves the configuration.
// Priority: flags > env > file > defaults.
func parseConfig(args []string) (*config.Config, *options, error) {
	var (
		opts     options
		addr     string
		tierName string
		root     string
		appLog   string
		jobsLog  string
		level    string
		format   string
		remote   bool
		localDev bool
	)

	fs := pflag.NewFlagSet("tidewave", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to tidewave.yaml (default: ./tidewave.yaml or ~/.tidewave/tidewave.yaml)")
	fs.StringVar(&opts.upstream, "upstream", "", "proxy requests outside the prefix to this application URL")
	fs.StringVar(&opts.upstreamTLS.CACertPath, "upstream-ca-cert", "", "PEM bundle trusted for an https upstream")
	fs.StringSliceVar(&opts.upstreamTLS.TrustedDomains, "upstream-insecure-host", nil, "skip certificate verification for these upstream hosts")
	fs.StringVar(&addr, "addr", "", "HTTP listen address (e.g., :4000)")
	fs.StringVar(&tierName, "tier", "", "capability tier: readonly, full or local")
	fs.StringVar(&root, "project-root", "", "project root for file access and command execution")
	fs.StringVar(&appLog, "app-log", "", "application log file served by get_logs")
	fs.StringVar(&jobsLog, "job-failures-log", "", "job failure log served by get_job_failures")
	fs.StringVar(&level, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&format, "log-format", "", "log format: console or json")
	fs.BoolVar(&remote, "allow-remote-access", false, "accept requests from non-loopback addresses")
	fs.BoolVar(&localDev, "local-dev", false, "skip bearer-token authentication")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.showHelp {
		fmt.Fprintf(os.Stderr, "Usage: tidewave [flags]\n\n%s", fs.FlagUsages())
		return nil, &opts, nil
	}

	path, explicit := config.DefaultPath(opts.configPath)
	cfg, err := config.LoadFile(path, explicit)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, nil, err
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.ListenAddr = addr })
	set("tier", func() { cfg.Tier = tier.Tier(tierName) })
	set("project-root", func() { cfg.ProjectRoot = root })
	set("app-log", func() { cfg.Logs.AppLog = appLog })
	set("job-failures-log", func() { cfg.Logs.JobFailuresLog = jobsLog })
	set("log-level", func() { cfg.Logging.Level = level })
	set("log-format", func() { cfg.Logging.Format = format })
	set("allow-remote-access", func() { cfg.AllowRemoteAccess = remote })
	set("local-dev", func() { cfg.LocalDev = localDev })

	if err := cfg.Check(); err != nil {
		return nil, nil, err
	}
	return cfg, &opts, nil
}
