package redis

import (
	"context"
	"sync"
	"time"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/model"
)

// Store saves the latest snapshot of a host. *Client implements it.
type Store interface {
	SetSnapshot(ctx context.Context, host string, info model.NetworkInfo) error
}

// Sink writes the snapshots of one host to a Store. Listen never blocks, so
// it is safe to register as a monitor listener; Run performs the writes.
// Only the most recent pending snapshot is written.
type Sink struct {
	store   Store
	host    string
	timeout time.Duration

	mu      sync.Mutex
	pending *model.NetworkInfo
	wake    chan struct{}
}

// NewSink creates a Sink for host. Each write is bounded by timeout.
func NewSink(store Store, host string, timeout time.Duration) *Sink {
	return &Sink{
		store:   store,
		host:    host,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
	}
}

// Listen queues info for writing, replacing any snapshot not yet written.
func (s *Sink) Listen(info model.NetworkInfo) {
	s.mu.Lock()
	s.pending = &info
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sink) take() (model.NetworkInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return model.NetworkInfo{}, false
	}
	info := *s.pending
	s.pending = nil
	return info, true
}

// Run writes queued snapshots until ctx is done. Write failures are logged
// and the snapshot is dropped; the next change is written normally.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		info, ok := s.take()
		if !ok {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.store.SetSnapshot(wctx, s.host, info)
		cancel()
		if err != nil {
			logging.Logger.WithError(err).WithField("host", s.host).Warn("redis: cannot store snapshot")
		}
	}
}
