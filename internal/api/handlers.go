package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/strollcast/director/internal/concat"
)

// ConcatHandler serves the concatenation worker's job endpoints.
//
// Jobs run under the process shutdown context rather than the request
// context: a client that gives up and drops the connection must not abort a
// job the host is still tracking. Only a deadline or process shutdown cancels
// in-flight work.
type ConcatHandler struct {
	svc     *concat.Service
	baseCtx context.Context
}

// NewConcatHandler creates the handler. baseCtx is the process shutdown
// context.
func NewConcatHandler(svc *concat.Service, baseCtx context.Context) *ConcatHandler {
	return &ConcatHandler{svc: svc, baseCtx: baseCtx}
}

// Concat handles POST /concat. The request blocks until the job finishes,
// matching the worker protocol the orchestrator expects.
func (h *ConcatHandler) Concat(w http.ResponseWriter, r *http.Request) {
	var req concat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJobError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.Run(h.baseCtx, req)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("job_id", req.JobID).Msg("concat job failed")
		writeJobError(w, jobErrorStatus(err), err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Status handles GET /status.
func (h *ConcatHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.svc.State().Snapshot())
}

func jobErrorStatus(err error) int {
	switch {
	case errors.Is(err, concat.ErrNoSegments), errors.Is(err, concat.ErrNoOutputURL):
		return http.StatusBadRequest
	case errors.Is(err, concat.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, concat.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJobError keeps the worker protocol's response shape on failures.
func writeJobError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, concat.Response{Success: false, Error: msg})
}
