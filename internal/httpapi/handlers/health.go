package handlers

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"montage/internal/httpkit"
	"montage/internal/ports"
)

const checkTimeout = 5 * time.Second

// Health reports liveness. With ?deep=true it also checks every dependency
// and reports "degraded" when one of them fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "montage-api",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for name, check := range checks {
			if check["status"] == "error" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "check", name, "error", check["error"])
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	checks := map[string]map[string]any{
		"storage": h.checkStorage(ctx),
		"pool":    h.checkPool(),
	}

	if h.rdb == nil {
		checks["redis"] = disabled()
	} else {
		checks["redis"] = timed(ctx, func(ctx context.Context) error {
			return h.rdb.Ping(ctx).Err()
		})
	}

	if h.queue == nil {
		checks["queue"] = disabled()
	} else {
		checks["queue"] = h.checkQueue(ctx)
	}

	if h.history == nil {
		checks["postgres"] = disabled()
	} else {
		checks["postgres"] = timed(ctx, h.history.Ping)
	}

	for _, bin := range h.binaries {
		checks[bin] = checkBinary(bin)
	}

	return checks
}

func (h *Handler) checkStorage(ctx context.Context) map[string]any {
	if h.sp == nil {
		return map[string]any{"status": "error", "error": "no storage provider"}
	}
	p, ok := h.sp.(ports.Pinger)
	if !ok {
		return map[string]any{"status": "ok", "provider": h.sp.Provider()}
	}
	res := timed(ctx, p.Ping)
	res["provider"] = h.sp.Provider()
	return res
}

func (h *Handler) checkPool() map[string]any {
	st := h.jobs.Stats()
	return map[string]any{
		"status":   "ok",
		"running":  st.Running,
		"free":     st.Free,
		"capacity": st.Capacity,
		"jobs":     st.Jobs,
	}
}

func (h *Handler) checkQueue(ctx context.Context) map[string]any {
	var depth int64
	res := timed(ctx, func(ctx context.Context) error {
		n, err := h.queue.Len(ctx)
		depth = n
		return err
	})
	if res["status"] == "ok" {
		res["depth"] = depth
	}
	return res
}

func checkBinary(bin string) map[string]any {
	path, err := exec.LookPath(bin)
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	return map[string]any{"status": "ok", "path": path}
}

func timed(ctx context.Context, ping func(context.Context) error) map[string]any {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := map[string]any{"status": "ok"}
	if err := ping(ctx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func disabled() map[string]any {
	return map[string]any{"status": "disabled"}
}
