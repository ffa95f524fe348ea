// Package orderevents streams hub events to websocket clients.
package orderevents

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/gorilla/websocket"
)

type hub interface {
	Subscribe(sink notify.Sink) (*notify.Subscription, error)
	Unsubscribe(sub *notify.Subscription)
}

// Config controls the websocket keepalive.
type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the keepalive used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}

	return c
}

const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware for the REST API; screens are served from anywhere.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream upgrades the request and keeps the subscription alive until the peer goes away
// or the hub closes the sink.
func Stream(w http.ResponseWriter, r *http.Request, hub hub, cfg Config) {
	cfg = cfg.withDefaults()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.InfoContext(r.Context(), "Error upgrading websocket", "error", err)

		return
	}

	sink := newWSSink(conn, cfg.WriteTimeout)
	sub, err := hub.Subscribe(sink)
	if err != nil {
		slog.WarnContext(r.Context(), "Error subscribing websocket", "error", err)
		_ = sink.Close()

		return
	}
	slog.InfoContext(r.Context(), "Websocket subscribed", "subscriber_id", sub.ID(), "remote_addr", r.RemoteAddr)

	go readLoop(conn, cfg.PingInterval*2, func() { hub.Unsubscribe(sub) })

	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sink.Done():
			slog.Info("Websocket closed", "subscriber_id", sub.ID())

			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				slog.Info("Websocket ping failed", "subscriber_id", sub.ID(), "error", err)
				hub.Unsubscribe(sub)
			}
		}
	}
}

// readLoop drains client frames so that pongs and close frames are processed.
func readLoop(conn *websocket.Conn, pongWait time.Duration, onClose func()) {
	defer onClose()

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
