// Package env reads instantaneous connectivity state from the host
// environment.
//
// An environment is any value. Its capabilities are discovered by checking
// which of the small interfaces below it implements. A missing capability is
// never an error: the readers fall back to "online" and "no descriptor".
package env

import (
	"math"

	"github.com/m-lab/netmon/model"
)

// OnlineReader exposes the host reachability flag.
type OnlineReader interface {
	Online() bool
}

// ConnectionReader exposes the host connection descriptor. The boolean is
// false when the host currently has no descriptor to offer.
type ConnectionReader interface {
	Connection() (model.Descriptor, bool)
}

// ConnectivityNotifier delivers "became online" and "became offline"
// transitions. The returned function cancels the subscription and must be
// safe to call more than once.
type ConnectivityNotifier interface {
	NotifyConnectivity(fn func(online bool)) (cancel func())
}

// ConnectionNotifier delivers connection descriptor changes. The returned
// function cancels the subscription and must be safe to call more than once.
type ConnectionNotifier interface {
	NotifyConnectionChange(fn func()) (cancel func())
}

// IsOnline returns the reachability flag of e, or true when e cannot tell.
func IsOnline(e any) bool {
	if r, ok := e.(OnlineReader); ok {
		return r.Online()
	}
	return true
}

// ReadDescriptor returns the connection descriptor of e. The boolean is false
// when e has no connection capability or no descriptor right now. NaN and
// infinite estimates are reported as absent.
func ReadDescriptor(e any) (model.Descriptor, bool) {
	r, ok := e.(ConnectionReader)
	if !ok {
		return model.Descriptor{}, false
	}
	d, ok := r.Connection()
	if !ok {
		return model.Descriptor{}, false
	}
	d.Downlink = finite(d.Downlink)
	d.RTT = finite(d.RTT)
	return d, true
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return p
}
