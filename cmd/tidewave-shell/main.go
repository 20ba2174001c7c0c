// tidewave-shell runs one command through a tidewave gateway and streams its
// output to stdout, exiting with the command's status.
//
//	tidewave-shell [--addr URL] -- ls -la
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	"github.com/DeBrosOfficial/tidewave/pkg/shell"
	"github.com/DeBrosOfficial/tidewave/pkg/tlsutil"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4AA")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// exitError carries the remote status out of run.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		addr      string
		prefix    string
		secretEnv string
		quiet     bool
		tlsOpts   tlsutil.Options
	)
	fs := pflag.NewFlagSet("tidewave-shell", pflag.ContinueOnError)
	fs.StringVar(&addr, "addr", "http://127.0.0.1:4000", "gateway base URL")
	fs.StringVar(&prefix, "prefix", config.DefaultPrefix, "reserved path prefix")
	fs.StringVar(&secretEnv, "secret-env", config.DefaultSecretEnv, "environment variable holding the bearer secret")
	fs.BoolVarP(&quiet, "quiet", "q", false, "do not print the status line")
	fs.StringVar(&tlsOpts.CACertPath, "ca-cert", "", "PEM bundle trusted for an https gateway")
	fs.StringSliceVar(&tlsOpts.TrustedDomains, "insecure-host", nil, "skip certificate verification for these hosts")
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	argv := fs.Args()
	if len(argv) == 0 {
		return fmt.Errorf("no command given; usage: tidewave-shell [flags] -- command [args...]")
	}

	base, err := url.Parse(strings.TrimSuffix(addr, "/"))
	if err != nil || base.Host == "" {
		return fmt.Errorf("invalid --addr %q", addr)
	}
	// No timeout: commands may stream for as long as they run.
	client, err := tlsutil.FromEnv(tlsOpts).NewHTTPClient(0, base.Host)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := execute(ctx, client, base.String()+prefix+"/shell", os.Getenv(secretEnv), argv, os.Stdout)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintln(os.Stderr, statusLine(st, term.IsTerminal(int(os.Stderr.Fd()))))
	}
	if st.Status != 0 {
		return exitError{code: st.Status}
	}
	return nil
}

// execute posts argv to endpoint and copies DATA chunks to out.
func execute(ctx context.Context, client *http.Client, endpoint, secret string, argv []string, out io.Writer) (shell.Status, error) {
	body, err := json.Marshal(shell.Request{Command: argv})
	if err != nil {
		return shell.Status{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return shell.Status{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return shell.Status{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return shell.Status{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return shell.Copy(out, resp.Body)
}

// statusLine summarizes st; styled selects the lipgloss rendering.
func statusLine(st shell.Status, styled bool) string {
	if !styled {
		if st.Error != "" {
			return fmt.Sprintf("engine failure (%d): %s", st.Status, st.Error)
		}
		return fmt.Sprintf("exit %d", st.Status)
	}
	switch {
	case st.Error != "":
		return errorStyle.Render(fmt.Sprintf("✗ engine failure (%d)", st.Status)) + " " + dimStyle.Render(st.Error)
	case st.Status == 0:
		return successStyle.Render("✓ exit 0")
	default:
		return errorStyle.Render(fmt.Sprintf("✗ exit %d", st.Status))
	}
}
