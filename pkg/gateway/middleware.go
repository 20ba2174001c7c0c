package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/config"
	"github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/httputil"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

const maxRequestIDLen = 128

// withMiddleware wraps in-scope handling.
// Order: request context (outermost) -> logging -> auth -> origin check -> handler.
// Auth and origin failures short-circuit before any route runs.
func (g *Gateway) withMiddleware(next http.Handler) http.Handler {
	return g.requestContextMiddleware(
		g.loggingMiddleware(
			g.authMiddleware(
				g.originMiddleware(next))))
}

// requestContextMiddleware attaches the per-request context, reusing an
// inbound X-Request-Id when it is usable.
func (g *Gateway) requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		rc := &ctxkeys.RequestContext{
			ID:         id,
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequest(r.Context(), rc)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// loggingMiddleware logs basic request info and duration
func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		g.logger.ComponentInfo(logging.ComponentGateway, "request",
			append(ctxkeys.LogFields(r.Context()),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", srw.status),
				zap.Int("bytes", srw.bytes),
				zap.String("duration", time.Since(start).String()),
			)...)
	})
}

// authMiddleware requires "Authorization: Bearer <secret>" unless local_dev
// is set. A missing secret, missing header, wrong scheme and wrong token are
// all the same 401 to the client.
func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.LocalDev {
			next.ServeHTTP(w, r)
			return
		}

		reason := ""
		token, ok := httputil.ExtractBearerToken(r)
		switch {
		case g.secret == "":
			reason = "no secret configured"
		case !httputil.HasAuthHeader(r):
			reason = "missing authorization header"
		case !ok:
			reason = "malformed authorization header"
		case !httputil.ConstantTimeEqual(token, g.secret):
			reason = "token mismatch"
		}
		if reason == "" {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.ComponentWarn(logging.ComponentGateway, "authentication failed",
			append(ctxkeys.LogFields(r.Context()), zap.String("reason", reason), zap.String("path", r.URL.Path))...)
		errors.WriteHTTPError(w, errors.NewUnauthorizedError(reason, g.authHint()), ctxkeys.RequestID(r.Context()))
	})
}

func (g *Gateway) authHint() string {
	env := g.cfg.SecretEnv
	if env == "" {
		env = config.DefaultSecretEnv
	}
	return fmt.Sprintf("Set the %s environment variable and send it as 'Authorization: Bearer <secret>'", env)
}

// originMiddleware accepts only loopback peers unless allow_remote_access
// is set. Forwarding headers are ignored.
func (g *Gateway) originMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.AllowRemoteAccess {
			next.ServeHTTP(w, r)
			return
		}
		addr, err := httputil.RemoteAddr(r)
		if err == nil && httputil.IsLoopback(addr) {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.ComponentWarn(logging.ComponentGateway, "rejected remote request",
			append(ctxkeys.LogFields(r.Context()), zap.String("path", r.URL.Path))...)
		errors.WriteHTTPError(w, errors.NewForbiddenError(
			"For security reasons, only requests from localhost are accepted. "+
				"Set allow_remote_access: true (or TIDEWAVE_ALLOW_REMOTE_ACCESS=true) to allow remote access.",
			"allow_remote_access"), ctxkeys.RequestID(r.Context()))
	})
}

// forward hands r to h without the gateway's routing state, so h may run its
// own chi router.
func forward(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), chi.RouteCtxKey, nil)
		h.ServeHTTP(w, r.WithContext(ctx))
	}
}
