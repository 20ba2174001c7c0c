// Package tlsutil builds TLS client settings for talking to development
// servers that use self-signed or locally issued certificates.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// EnvTrustedDomains is a comma-separated list of hosts whose certificate
	// is not verified when no CA is configured.
	EnvTrustedDomains = "TIDEWAVE_TRUSTED_TLS_DOMAINS"

	// EnvCACertPath points at a PEM bundle added to the root pool.
	EnvCACertPath = "TIDEWAVE_CA_CERT_PATH"
)

// Options selects how server certificates are verified.
type Options struct {
	CACertPath     string
	TrustedDomains []string
}

// FromEnv reads Options from the environment, merging them over base.
func FromEnv(base Options) Options {
	if base.CACertPath == "" {
		base.CACertPath = os.Getenv(EnvCACertPath)
	}
	for _, d := range strings.Split(os.Getenv(EnvTrustedDomains), ",") {
		if d = strings.TrimSpace(d); d != "" {
			base.TrustedDomains = append(base.TrustedDomains, d)
		}
	}
	return base
}

// ShouldSkipVerify checks if host matches a trusted domain. A leading "*."
// matches any subdomain and the apex.
func (o Options) ShouldSkipVerify(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, trusted := range o.TrustedDomains {
		if strings.HasPrefix(trusted, "*.") {
			suffix := strings.TrimPrefix(trusted, "*")
			if strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".") {
				return true
			}
		} else if strings.EqualFold(host, trusted) {
			return true
		}
	}
	return false
}

// Config returns a TLS config for host. A CA bundle takes precedence over the
// trusted-domain list.
func (o Options) Config(host string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if o.CACertPath != "" {
		data, err := os.ReadFile(o.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates found in %s", o.CACertPath)
		}
		cfg.RootCAs = pool
		return cfg, nil
	}
	if host != "" && o.ShouldSkipVerify(host) {
		cfg.InsecureSkipVerify = true
	}
	return cfg, nil
}

// Transport returns a clone of the default transport using Config(host).
func (o Options) Transport(host string) (*http.Transport, error) {
	tlsCfg, err := o.Config(host)
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return tr, nil
}

// NewHTTPClient creates an HTTP client for host. A zero timeout means none,
// which streaming callers rely on.
func (o Options) NewHTTPClient(timeout time.Duration, host string) (*http.Client, error) {
	tr, err := o.Transport(host)
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: timeout, Transport: tr}, nil
}
