package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/redis"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	Connections *int   `json:"connections,omitempty"`
	LastImport  string `json:"last_import,omitempty"`
	Imported    *int   `json:"imported,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"redis": checkRedis(r.Context(), d),
			"live":  liveStatus(d),
		}
		if d.Seed != nil {
			components["seed"] = seedStatus(d)
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode: redis down means nothing works; a failing seed import
// only degrades.
func determineMode(components map[string]componentStatus) string {
	if c, ok := components["redis"]; ok && !c.OK {
		return "critical"
	}
	if c, ok := components["seed"]; ok && !c.OK {
		return "degraded"
	}
	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{Impact: "bookmarks-unavailable", Error: "client not initialized"}
	}
	if err := redis.Ping(ctx, d.RedisClient, 2*time.Second); err != nil {
		return componentStatus{Impact: "bookmarks-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func liveStatus(d deps.Deps) componentStatus {
	n := 0
	if d.Live != nil {
		n = d.Live.Count()
	}
	return componentStatus{OK: d.Live != nil, Connections: &n}
}

func seedStatus(d deps.Deps) componentStatus {
	st := d.Seed.Status()
	c := componentStatus{OK: st.Err == "", LastImport: "never", Imported: &st.Imported, Error: st.Err}
	if !st.LastRun.IsZero() {
		c.LastImport = st.LastRun.Format("2006-01-02 15:04:05")
	}
	if !c.OK {
		c.Impact = "seed-bookmarks-stale"
	}
	return c
}
