// Package api exposes a monitor over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/model"
	"github.com/m-lab/netmon/monitor"
	"github.com/m-lab/netmon/probe"
	"github.com/m-lab/netmon/stream"
)

// Paths served by Mux.
const (
	NetworkPath = "/v1/network"
	RefreshPath = "/v1/network/refresh"
	MeasurePath = "/v1/network/measure"
	StreamPath  = "/v1/network/stream"
)

// Monitor is the part of *monitor.Monitor served by the API.
type Monitor interface {
	stream.Source
	Current() model.NetworkInfo
	Refresh() model.NetworkInfo
	MeasurePerformance(ctx context.Context) (model.MeasurementResult, error)
}

// Handler serves the current snapshot, on-demand refreshes and
// measurements, and the websocket snapshot stream.
type Handler struct {
	Monitor Monitor
	Stream  *stream.Handler
}

// New creates a Handler streaming from m with default stream settings.
func New(m Monitor) *Handler {
	return &Handler{Monitor: m, Stream: &stream.Handler{Source: m}}
}

// Mux returns a mux serving the API paths.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(NetworkPath, h.Network)
	mux.HandleFunc(RefreshPath, h.Refresh)
	mux.HandleFunc(MeasurePath, h.Measure)
	mux.Handle(StreamPath, h.Stream)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.WithError(err).Debug("api: cannot write response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Network returns the current snapshot without recomputing it.
func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.Monitor.Current())
}

// Refresh recomputes the snapshot and returns it.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.Monitor.Refresh())
}

// Measure runs the active probes for the lifetime of the request.
func (h *Handler) Measure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	res, err := h.Monitor.MeasurePerformance(r.Context())
	if err != nil {
		logging.Logger.WithError(err).Warn("api: measurement failed")
		writeJSON(w, measureStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func measureStatus(err error) int {
	switch {
	case errors.Is(err, monitor.ErrNoProber):
		return http.StatusNotImplemented
	case errors.Is(err, probe.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
