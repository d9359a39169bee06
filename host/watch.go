package host

import (
	"context"
	"sync"

	"github.com/m-lab/go/memoryless"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/model"
)

// watcher polls the host and fires the environment subscribers when the
// reachability flag or the descriptor changes. It runs only while there is
// at least one subscription.
type watcher struct {
	ticker *memoryless.Ticker
	cancel context.CancelFunc
}

func (w *watcher) stop() {
	w.ticker.Stop()
	w.cancel()
}

// NotifyConnectivity implements env.ConnectivityNotifier.
func (e *Environment) NotifyConnectivity(fn func(online bool)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.initLocked()
	e.connectivity[id] = fn
	e.startLocked()
	return e.canceler(func() { delete(e.connectivity, id) })
}

// NotifyConnectionChange implements env.ConnectionNotifier.
func (e *Environment) NotifyConnectionChange(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.initLocked()
	e.connection[id] = fn
	e.startLocked()
	return e.canceler(func() { delete(e.connection, id) })
}

// canceler returns an idempotent cancel function running remove and
// stopping the watcher after the last subscription.
func (e *Environment) canceler(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			remove()
			var w *watcher
			if len(e.connectivity)+len(e.connection) == 0 {
				w, e.watcher = e.watcher, nil
			}
			e.mu.Unlock()
			if w != nil {
				// Not waiting for the goroutine: a subscriber may cancel from
				// inside its own notification.
				w.stop()
			}
		})
	}
}

func (e *Environment) initLocked() {
	if e.connectivity == nil {
		e.connectivity = make(map[int]func(bool))
	}
	if e.connection == nil {
		e.connection = make(map[int]func())
	}
}

func (e *Environment) startLocked() {
	if e.watcher != nil {
		return
	}
	interval := e.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	ticker, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      interval,
		Expected: interval,
		Max:      interval,
	})
	if err != nil {
		cancel()
		logging.Logger.WithError(err).Warn("host: cannot start the change watcher")
		return
	}
	e.watcher = &watcher{ticker: ticker, cancel: cancel}
	online := e.Online()
	desc, ok := e.Connection()
	go e.watch(ticker, online, desc, ok)
}

func (e *Environment) watch(ticker *memoryless.Ticker, online bool, desc model.Descriptor, ok bool) {
	for range ticker.C {
		nowOnline := e.Online()
		nowDesc, nowOK := e.Connection()
		if nowOnline != online {
			online = nowOnline
			logging.Logger.WithField("online", online).Info("host: connectivity changed")
			for _, fn := range e.connectivitySubscribers() {
				fn(online)
			}
		}
		if nowOK != ok || !nowDesc.Equal(desc) {
			desc, ok = nowDesc, nowOK
			logging.Logger.Debug("host: connection changed")
			for _, fn := range e.connectionSubscribers() {
				fn()
			}
		}
	}
}

func (e *Environment) connectivitySubscribers() []func(bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fns := make([]func(bool), 0, len(e.connectivity))
	for _, fn := range e.connectivity {
		fns = append(fns, fn)
	}
	return fns
}

func (e *Environment) connectionSubscribers() []func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	fns := make([]func(), 0, len(e.connection))
	for _, fn := range e.connection {
		fns = append(fns, fn)
	}
	return fns
}
