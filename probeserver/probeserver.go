// Package probeserver serves the endpoints the active prober measures
// against: a sized download and a bodiless ping.
package probeserver

import (
	"math/rand"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-lab/netmon/access"
	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
	"github.com/m-lab/netmon/probe"
)

// Paths of the probe endpoints.
const (
	DownloadPath = "/v1/probe/download"
	PingPath     = "/v1/probe/ping"
)

// DefaultMaxSize caps the download size when Handler.MaxSize is zero.
const DefaultMaxSize = 100 * probe.DefaultSampleBytes

// chunkSize is the size of the payload buffer written repeatedly.
const chunkSize = 1 << 16

var payload = makePayload(chunkSize)

// makePayload generates random letters so that the body does not compress.
func makePayload(size int) []byte {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	data := make([]byte, size)
	for i := range data {
		data[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return data
}

// Handler serves the probe endpoints.
type Handler struct {
	// MaxSize is the largest download a client may request.
	MaxSize int64
}

func (h Handler) maxSize() int64 {
	if h.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return h.MaxSize
}

// Download writes the number of bytes requested in the size parameter,
// probe.DefaultSampleBytes when absent, capped at MaxSize.
func (h Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	size := int64(probe.DefaultSampleBytes)
	if v := r.URL.Query().Get(probe.SizeParam); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			logging.Logger.WithField("size", v).Debug("probeserver: malformed size")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		size = n
	}
	if limit := h.maxSize(); size > limit {
		size = limit
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	for remaining := size; remaining > 0; {
		n := int64(len(payload))
		if remaining < n {
			n = remaining
		}
		if _, err := w.Write(payload[:n]); err != nil {
			logging.Logger.WithError(err).Debug("probeserver: client went away")
			return
		}
		remaining -= n
	}
}

// Ping answers with an empty response.
func (h Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func instrument(next http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerInFlight(metrics.ProbeRequestsInFlight,
		promhttp.InstrumentHandlerDuration(metrics.ProbeRequestDuration, next))
}

// Mux returns a mux serving the probe endpoints. Downloads pass through the
// access controllers; pings are never limited so that latency stays
// measurable while the server is busy.
func Mux(h Handler, controllers ...access.Controller) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(DownloadPath, access.Wrap(instrument(h.Download), controllers...))
	mux.Handle(PingPath, instrument(h.Ping))
	return mux
}
