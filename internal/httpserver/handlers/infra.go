package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	NodesLoaded *int   `json:"nodes_loaded,omitempty"`
	LastFetch   string `json:"last_fetch,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Accelerator.Status()

		sub := componentStatus{LastFetch: "never"}
		if st.Subscription != nil {
			n := st.Subscription.Nodes
			sub.OK = n > 0
			sub.NodesLoaded = &n
			sub.LastFetch = st.Subscription.FetchedAt.Format("2006-01-02 15:04:05")
		}

		core := componentStatus{OK: st.Session.State != domain.SessionFailed, Mode: string(st.Session.State)}
		if st.Session.Err != nil {
			core.Error = st.Session.Err.Error()
		}

		components := map[string]componentStatus{
			"subscription": sub,
			"core":         core,
			"redis":        checkRedis(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if sub, ok := components["subscription"]; ok && !sub.OK {
		return "critical"
	}
	if core, ok := components["core"]; ok && !core.OK {
		return "critical"
	}
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded"
	}
	return "optimal"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "no-snapshot-restore",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "no-snapshot-restore",
			Error:  err.Error(),
		}
	}

	return componentStatus{OK: true, Mode: "optimal"}
}
