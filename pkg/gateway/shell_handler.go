package gateway

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/httputil"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
	"github.com/DeBrosOfficial/tidewave/pkg/shell"
	"github.com/DeBrosOfficial/tidewave/pkg/tier"
)

// ShellContentType is the media type of a framed command stream.
const ShellContentType = "application/octet-stream"

// shellHandler runs a command and streams framed output. Everything that can
// fail before the process starts is answered with an ordinary HTTP error;
// after the 200 is committed, failures are reported in the STATUS chunk.
func (g *Gateway) shellHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := ctxkeys.RequestID(ctx)

	if g.cfg.Tier != tier.Full {
		g.logger.ComponentWarn(logging.ComponentShell, "shell rejected by tier",
			append(ctxkeys.LogFields(ctx), zap.String("tier", string(g.cfg.Tier)))...)
		errors.WriteHTTPError(w, errors.NewForbiddenError(
			fmt.Sprintf("Shell execution requires tier %q (current tier: %q). Set tier: full to enable it.",
				tier.Full, g.cfg.Tier),
			"tier"), requestID)
		return
	}

	body, err := httputil.ReadBody(r, g.cfg.Shell.MaxBodyBytes)
	switch {
	case err == nil:
	case httputil.IsBodyTooLarge(err):
		httputil.WriteText(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	default:
		g.logger.ComponentWarn(logging.ComponentShell, "failed to read shell request body",
			append(ctxkeys.LogFields(ctx), zap.Error(err))...)
		httputil.WriteText(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	argv, err := g.executor.Prepare(ctx, body)
	switch {
	case err == nil:
	case errors.IsValidation(err):
		httputil.WriteText(w, http.StatusBadRequest, errors.GetErrorMessage(err))
		return
	default:
		errors.WriteHTTPError(w, err, requestID)
		return
	}

	h := w.Header()
	h.Set("Content-Type", ShellContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	g.executor.Execute(ctx, argv, shell.NewChunkWriter(w))
}
