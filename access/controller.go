// Package access limits the probe requests a server accepts.
package access

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	currentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netmon_access_maxcontroller_current",
			Help: "Current number of probe requests handled by the access maxcontroller.",
		},
	)
	accessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netmon_access_requests_total",
			Help: "Total number of probe requests handled by the access controllers.",
		},
		[]string{"controller", "request"},
	)
)

// Controller is the interface that all access control types should implement.
type Controller interface {
	Limit(next http.Handler) http.Handler
}

// Wrap applies the controllers to next. The first controller runs first.
func Wrap(next http.Handler, controllers ...Controller) http.Handler {
	for i := len(controllers) - 1; i >= 0; i-- {
		if controllers[i] != nil {
			next = controllers[i].Limit(next)
		}
	}
	return next
}

// MaxController controls the total number of probes that may run
// simultaneously. May be used on handlers for multiple endpoints.
type MaxController struct {
	Max     int64
	Current int64
}

// Limit enforces the concurrent Max limit while running the next handler.
func (c *MaxController) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&c.Current, 1)
		currentRequests.Set(float64(cur))
		defer func() {
			cur := atomic.AddInt64(&c.Current, -1)
			currentRequests.Set(float64(cur))
		}()
		if c.Max > 0 && cur > c.Max {
			accessRequests.WithLabelValues("max", "rejected").Inc()
			// 503 - https://tools.ietf.org/html/rfc7231#section-6.6.4
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		accessRequests.WithLabelValues("max", "accepted").Inc()
		next.ServeHTTP(w, r)
	})
}
