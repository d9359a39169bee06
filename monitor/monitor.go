// Package monitor maintains the current network snapshot of a host and
// notifies listeners when it changes.
//
// A Monitor recomputes its snapshot on connectivity transitions, on
// connection descriptor changes, on an optional poll timer and on explicit
// Refresh calls. Every trigger goes through the same path: the new snapshot
// is compared field by field with the current one and listeners are only
// notified of real changes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/m-lab/go/memoryless"
	"golang.org/x/sync/errgroup"

	"github.com/m-lab/netmon/classify"
	"github.com/m-lab/netmon/env"
	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
	"github.com/m-lab/netmon/model"
	"github.com/m-lab/netmon/probe"
)

// Trigger names the reason of a recomputation.
type Trigger string

// Recomputation triggers.
const (
	TriggerManual       Trigger = "manual"
	TriggerConnectivity Trigger = "connectivity"
	TriggerConnection   Trigger = "connection"
	TriggerPoll         Trigger = "poll"
)

// ErrNoProber is returned by MeasurePerformance when the monitor was
// created without a prober.
var ErrNoProber = errors.New("monitor: no prober configured")

// Config configures a Monitor.
type Config struct {
	// PollInterval is the period of the fallback recomputation timer. Zero
	// disables polling.
	PollInterval time.Duration

	// Heuristic overrides the 5G detection thresholds. The zero value selects
	// classify.DefaultHeuristic.
	Heuristic classify.Heuristic

	// Prober runs the active measurements of MeasurePerformance.
	Prober *probe.Prober

	// LatencyEndpoint is the target of the latency probe. Empty means the
	// prober download URL.
	LatencyEndpoint string

	// SampleBytes, DownloadTimeout and LatencySamples are passed to the
	// probes. Zero values select the probe defaults.
	SampleBytes     int64
	DownloadTimeout time.Duration
	LatencySamples  int
}

// Monitor owns a snapshot, its listeners, its environment subscriptions and
// its poll timer. It is either active or destroyed; Destroy is terminal.
type Monitor struct {
	env       any
	cfg       Config
	heuristic classify.Heuristic

	// batch serializes recompute-and-notify batches so that no batch
	// interleaves with another.
	batch sync.Mutex

	mu        sync.Mutex
	current   model.NetworkInfo
	listeners registry
	destroyed bool
	// notifying is set while listeners run. Batches started meanwhile are
	// appended to pending and run by the batch holder once it is done.
	notifying bool
	pending   []func()
	cancels   []func()
	ticker    *memoryless.Ticker
	stopPoll  context.CancelFunc
}

// New creates an active Monitor reading e, computes the initial snapshot
// and subscribes to whatever change notifications e supports.
func New(e any, cfg Config) (*Monitor, error) {
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("monitor: negative poll interval %s", cfg.PollInterval)
	}
	h := cfg.Heuristic
	if h == (classify.Heuristic{}) {
		h = classify.DefaultHeuristic
	}
	m := &Monitor{
		env:       e,
		cfg:       cfg,
		heuristic: h,
	}
	m.current = h.Snapshot(e)
	if n, ok := e.(env.ConnectivityNotifier); ok {
		m.cancels = append(m.cancels, n.NotifyConnectivity(func(bool) {
			m.refresh(TriggerConnectivity)
		}))
	}
	if n, ok := e.(env.ConnectionNotifier); ok {
		m.cancels = append(m.cancels, n.NotifyConnectionChange(func() {
			m.refresh(TriggerConnection)
		}))
	}
	if cfg.PollInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		// Min, Expected and Max are equal so the ticker is strictly periodic.
		ticker, err := memoryless.NewTicker(ctx, memoryless.Config{
			Min:      cfg.PollInterval,
			Expected: cfg.PollInterval,
			Max:      cfg.PollInterval,
		})
		if err != nil {
			cancel()
			m.Destroy()
			return nil, err
		}
		m.ticker, m.stopPoll = ticker, cancel
		go m.poll(ticker)
	}
	logging.Logger.WithFields(logging.Fields(m.current)).Debug("monitor: started")
	return m, nil
}

// poll refreshes on every tick until the ticker channel is closed.
func (m *Monitor) poll(ticker *memoryless.Ticker) {
	for range ticker.C {
		m.refresh(TriggerPoll)
	}
}

// Current returns the current snapshot without recomputing it.
func (m *Monitor) Current() model.NetworkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Refresh recomputes the snapshot. When it differs from the current one it
// replaces it and every listener is called with it, in registration order,
// before Refresh returns. Refresh returns the current snapshot either way.
// After Destroy it returns the last snapshot and notifies nobody.
//
// Called while listeners are being notified, for instance from a listener,
// Refresh does not wait: the recomputation runs once the notification round
// ends and Refresh returns the snapshot being delivered.
func (m *Monitor) Refresh() model.NetworkInfo {
	return m.refresh(TriggerManual)
}

func (m *Monitor) refresh(trigger Trigger) model.NetworkInfo {
	var info model.NetworkInfo
	if !m.serialize(func() { info = m.recompute(trigger) }) {
		return m.Current()
	}
	return info
}

// serialize runs job as its own batch and then every batch queued while it
// ran. When listeners are being notified job is queued instead and
// serialize returns false without waiting for it.
func (m *Monitor) serialize(job func()) bool {
	m.mu.Lock()
	if m.notifying {
		m.pending = append(m.pending, job)
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	m.batch.Lock()
	defer m.batch.Unlock()
	job()
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return true
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		next()
	}
}

// recompute must run under batch.
func (m *Monitor) recompute(trigger Trigger) model.NetworkInfo {
	if m.Destroyed() {
		return m.Current()
	}
	metrics.Refreshes.WithLabelValues(string(trigger)).Inc()
	next := m.heuristic.Snapshot(m.env)

	m.mu.Lock()
	if m.destroyed || next.Equal(m.current) {
		cur := m.current
		m.mu.Unlock()
		return cur
	}
	m.current = next
	regs := m.listeners.list()
	m.mu.Unlock()

	metrics.SnapshotChanges.WithLabelValues(string(next.Type)).Inc()
	logging.Logger.WithFields(logging.Fields(next)).WithField("trigger", string(trigger)).Info("monitor: network changed")
	m.setNotifying(true)
	defer m.setNotifying(false)
	for _, r := range regs {
		// A listener canceled, or a monitor destroyed, by an earlier
		// listener of this batch is not called.
		if !m.registered(r.id) {
			continue
		}
		invoke(r.fn, next)
	}
	return next
}

func (m *Monitor) setNotifying(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifying = v
}

func (m *Monitor) registered(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.destroyed && m.listeners.has(id)
}

// AddListener registers fn and calls it once with the current snapshot
// before returning. The returned function removes this registration; calling
// it more than once is harmless. On a destroyed monitor fn is neither
// registered nor called.
//
// Called while listeners are being notified, the registration and the
// initial call happen once the notification round ends, ahead of any batch
// queued after it.
func (m *Monitor) AddListener(fn Listener) (unsubscribe func()) {
	var (
		id       uint64
		canceled bool
	)
	m.serialize(func() {
		m.mu.Lock()
		if m.destroyed || canceled {
			m.mu.Unlock()
			return
		}
		id = m.listeners.add(fn)
		cur := m.current
		m.mu.Unlock()

		m.setNotifying(true)
		defer m.setNotifying(false)
		invoke(fn, cur)
	})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		canceled = true
		m.listeners.remove(id)
	}
}

// Listeners returns the number of registered listeners.
func (m *Monitor) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners.len()
}

// MeasurePerformance runs the download and latency probes concurrently. The
// first probe failure cancels the other one and is returned. The snapshot
// is never modified.
func (m *Monitor) MeasurePerformance(ctx context.Context) (model.MeasurementResult, error) {
	p := m.cfg.Prober
	if p == nil {
		return model.MeasurementResult{}, ErrNoProber
	}
	endpoint := m.cfg.LatencyEndpoint
	if endpoint == "" {
		endpoint = p.DownloadURL
	}
	var res model.MeasurementResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.MeasureDownloadSpeed(gctx, m.cfg.SampleBytes, m.cfg.DownloadTimeout)
		res.DownloadSpeedMbps = v
		return err
	})
	g.Go(func() error {
		v, err := p.MeasureLatency(gctx, endpoint, m.cfg.LatencySamples)
		res.LatencyMs = v
		return err
	})
	if err := g.Wait(); err != nil {
		return model.MeasurementResult{}, err
	}
	return res, nil
}

// Destroy cancels the environment subscriptions, stops the poll timer and
// drops every listener. It is safe to call more than once.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	cancels := m.cancels
	m.cancels = nil
	ticker, stopPoll := m.ticker, m.stopPoll
	m.listeners.clear()
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if ticker != nil {
		ticker.Stop()
		stopPoll()
	}
	logging.Logger.Debug("monitor: destroyed")
}

// Destroyed reports whether Destroy has been called.
func (m *Monitor) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}
