package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/tlsutil"
)

// newUpstreamProxy forwards everything outside the prefix to a running
// application.
func newUpstreamProxy(logger *logging.ColoredLogger, target string, tlsOpts tlsutil.Options) (http.Handler, error) {
	logger = logging.OrNop(logger)
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", target)
	}
	transport, err := tlsutil.FromEnv(tlsOpts).Transport(u.Host)
	if err != nil {
		return nil, fmt.Errorf("upstream TLS: %w", err)
	}
	return &httputil.ReverseProxy{
		Transport: transport,
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			// Keep original host for Host header
			r.Out.Host = r.In.Host
			r.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ComponentError(logging.ComponentGateway, "upstream request failed",
				zap.String("upstream", target), zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}, nil
}

// requestLog appends one timestamped line per request to the app log so the
// log tools have something to read.
type requestLog struct {
	mu   sync.Mutex
	path string
}

func (l *requestLog) write(r *http.Request, status int, dur time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s Completed %d %s %s in %s\n",
		time.Now().Format(time.RFC3339), status, r.Method, r.URL.Path, dur.Round(time.Millisecond))
}

// newDemoApp is a stand-in application used when no upstream is given.
func newDemoApp(appLog string) http.Handler {
	rl := &requestLog{path: appLog}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rl.write(req, status, time.Since(start))
		})
	})
	r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<!doctype html><title>tidewave</title><p>Demo application. Tooling is served under the reserved prefix.</p>")
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	return r
}
