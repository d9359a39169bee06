package monitor

import (
	"fmt"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
	"github.com/m-lab/netmon/model"
)

// Listener receives snapshots. It is called synchronously. It may cancel any
// registration and call any Monitor method; Refresh and AddListener calls it
// makes are deferred until the current notification round ends.
type Listener func(model.NetworkInfo)

type registration struct {
	id uint64
	fn Listener
}

// registry is an insertion ordered set of listeners. It is not safe for
// concurrent use; the monitor guards it.
type registry struct {
	next    uint64
	entries []registration
}

func (r *registry) add(fn Listener) uint64 {
	r.next++
	r.entries = append(r.entries, registration{id: r.next, fn: fn})
	metrics.Listeners.Inc()
	return r.next
}

// remove drops the registration with the given id. Removing an unknown id,
// zero included, is a no-op and returns false.
func (r *registry) remove(id uint64) bool {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			metrics.Listeners.Dec()
			return true
		}
	}
	return false
}

func (r *registry) has(id uint64) bool {
	for _, e := range r.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

// list returns a copy of the registrations in notification order.
func (r *registry) list() []registration {
	return append([]registration(nil), r.entries...)
}

func (r *registry) clear() {
	metrics.Listeners.Sub(float64(len(r.entries)))
	r.entries = nil
}

func (r *registry) len() int {
	return len(r.entries)
}

// invoke calls fn with info. A panic in fn is logged and contained.
func invoke(fn Listener, info model.NetworkInfo) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerPanics.Inc()
			logging.Logger.WithField("panic", fmt.Sprint(r)).Error("monitor: listener panicked")
			ok = false
		}
	}()
	fn(info)
	return true
}
