package gateway

import (
	"net/http"

	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/httputil"
)

// configResponse describes the running application to the client.
type configResponse struct {
	ProjectName     string            `json:"project_name"`
	FrameworkType   string            `json:"framework_type"`
	TidewaveVersion string            `json:"tidewave_version"`
	Team            map[string]string `json:"team"`
	Mode            string            `json:"mode"`
	RequestID       string            `json:"request_id"`
}

func (g *Gateway) configHandler(w http.ResponseWriter, r *http.Request) {
	team := g.cfg.Team
	if team == nil {
		team = map[string]string{}
	}
	httputil.WriteJSON(w, http.StatusOK, configResponse{
		ProjectName:     g.cfg.ProjectName,
		FrameworkType:   g.cfg.FrameworkType,
		TidewaveVersion: Version,
		Team:            team,
		Mode:            string(g.cfg.Tier),
		RequestID:       ctxkeys.RequestID(r.Context()),
	})
}
