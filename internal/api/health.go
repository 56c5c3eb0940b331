package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// ToolChecker reports whether the audio tools are runnable.
type ToolChecker interface {
	Check() error
}

type HealthHandler struct {
	tools     ToolChecker
	version   string
	startTime time.Time
}

func NewHealthHandler(tools ToolChecker, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		tools:     tools,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        map[string]string{},
	}

	if h.tools != nil {
		if err := h.tools.Check(); err != nil {
			resp.Status = "degraded"
			resp.Checks["ffmpeg"] = err.Error()
		} else {
			resp.Checks["ffmpeg"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
