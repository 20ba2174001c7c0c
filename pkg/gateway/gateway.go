// Package gateway is the single ingress for everything under the reserved
// prefix. It authenticates, checks the caller's origin, serves the config
// and shell endpoints itself and hands every other in-scope request to a
// delegate. Requests outside the prefix go to the downstream application.
// Every response, in scope or not, has X-Frame-Options removed.
package gateway

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/shell"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

// Version is reported by the config endpoint. Overridden at build time via
// -ldflags "-X github.com/DeBrosOfficial/tidewave/pkg/gateway.Version=...".
var Version = "0.1.0"

// Gateway wraps a downstream application. The configuration it holds is
// read-only after New returns, so a Gateway serves concurrent requests
// without locking.
type Gateway struct {
	logger     *logging.ColoredLogger
	cfg        *config.Config
	secret     string
	downstream http.Handler
	delegate   http.Handler
	executor   *shell.Executor
	router     chi.Router
}

// New builds a gateway in front of downstream. delegate receives in-scope
// requests the gateway does not handle itself; nil answers them with 404.
func New(logger *logging.ColoredLogger, cfg *config.Config, downstream, delegate http.Handler) *Gateway {
	logger = logging.OrNop(logger)
	if downstream == nil {
		downstream = http.NotFoundHandler()
	}
	if delegate == nil {
		delegate = http.NotFoundHandler()
	}

	g := &Gateway{
		logger:     logger,
		cfg:        cfg,
		secret:     cfg.Secret(),
		downstream: downstream,
		delegate:   delegate,
		executor: shell.NewExecutor(logger, shell.Config{
			MaxOutputBytes: cfg.Shell.MaxOutputBytes,
			PollInterval:   cfg.Shell.PollInterval,
			Dir:            cfg.ProjectRoot,
		}),
	}
	g.router = g.routes()

	if !cfg.Tier.Valid() {
		logger.ComponentWarn(logging.ComponentGateway, "unrecognized tier; no operations will be exposed",
			zap.String("tier", string(cfg.Tier)))
	}
	logger.ComponentInfo(logging.ComponentGateway, "gateway initialized",
		zap.String("prefix", cfg.Prefix),
		zap.String("tier", string(cfg.Tier)),
		zap.Strings("operations", tier.Names(tier.Filter(cfg.Tier, tier.Operations, logger))),
		zap.Bool("allow_remote_access", cfg.AllowRemoteAccess),
		zap.Bool("local_dev", cfg.LocalDev),
		zap.Bool("secret_configured", g.secret != ""),
	)
	return g
}

// InScope reports whether path falls under the reserved prefix.
func (g *Gateway) InScope(path string) bool {
	p := g.cfg.Prefix
	return path == p || strings.HasPrefix(path, p+"/")
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := newHeaderStripWriter(w)
	defer sw.finish()

	if !g.InScope(r.URL.Path) {
		g.downstream.ServeHTTP(sw, r)
		return
	}
	g.withMiddleware(g.router).ServeHTTP(sw, r)
}
