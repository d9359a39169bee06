// Package stream serves network snapshots to websocket clients as they
// change.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
	"github.com/m-lab/netmon/model"
	"github.com/m-lab/netmon/monitor"
)

// Defaults applied when the Handler fields are zero.
const (
	DefaultBuffer       = 16
	DefaultWriteTimeout = 10 * time.Second
)

// Source publishes snapshots to listeners. *monitor.Monitor implements it.
type Source interface {
	AddListener(fn monitor.Listener) (unsubscribe func())
}

// Handler upgrades requests to websockets and sends every snapshot of
// Source to the client as a JSON text message, starting with the current
// one. A client that falls Buffer messages behind is disconnected.
type Handler struct {
	Source   Source
	Upgrader websocket.Upgrader

	Buffer       int
	WriteTimeout time.Duration
}

// client is the per-connection state shared by the listener and the write
// pump.
type client struct {
	send    chan model.NetworkInfo
	behind  chan struct{}
	dropped sync.Once
}

// deliver runs on the monitor's notification path so it must never block.
func (c *client) deliver(info model.NetworkInfo) {
	select {
	case c.send <- info:
	default:
		c.dropped.Do(func() { close(c.behind) })
	}
}

func (h *Handler) buffer() int {
	if h.Buffer <= 0 {
		return DefaultBuffer
	}
	return h.Buffer
}

func (h *Handler) writeTimeout() time.Duration {
	if h.WriteTimeout <= 0 {
		return DefaultWriteTimeout
	}
	return h.WriteTimeout
}

// ServeHTTP handles one websocket client until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logging.Logger.WithError(err).Warn("stream: cannot upgrade to websocket")
		return
	}
	defer warnonerror.Close(conn, "stream: ignoring conn.Close result")
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()
	logging.Logger.WithField("remote", r.RemoteAddr).Debug("stream: client connected")

	c := &client{
		send:   make(chan model.NetworkInfo, h.buffer()),
		behind: make(chan struct{}),
	}
	unsubscribe := h.Source.AddListener(c.deliver)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// Client messages are ignored; reading processes control frames
		// and detects the disconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case info := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout())); err != nil {
				return
			}
			if err := conn.WriteJSON(info); err != nil {
				logging.Logger.WithError(err).Debug("stream: write failed")
				return
			}
		case <-c.behind:
			logging.Logger.WithField("remote", r.RemoteAddr).Warn("stream: client too slow, disconnecting")
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
				logging.Logger.WithError(err).Debug("stream: cannot send close frame")
			}
			return
		case <-closed:
			logging.Logger.WithField("remote", r.RemoteAddr).Debug("stream: client disconnected")
			return
		}
	}
}
