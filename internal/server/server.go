package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/bus"
)

// Config controls the broadcast endpoint.
type Config struct {
	// ListenAddr is the local address to serve on.
	ListenAddr string
	// QueueSize is the per-client delivery queue. A client that falls
	// this far behind is evicted by the hub.
	QueueSize int
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("invalid server config: empty listen addr")
	}
	return nil
}

// Server streams admitted events to websocket clients. Each connection is
// one hub subscription: frames arrive in admission order, and a client
// too slow to keep up is dropped without touching anyone else.
type Server struct {
	cfg      Config
	hub      *bus.Hub
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a server bound to the hub.
func New(cfg Config, hub *bus.Hub) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, hub: hub}
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	s.httpSrv = &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	return s, nil
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	logs.Infof("broadcast listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler exposes the stream handler for embedding in another mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleStream)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Errorf("upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(s.cfg.QueueSize)
	defer s.hub.Unsubscribe(sub)
	logs.Infof("client %s subscribed", r.RemoteAddr)

	// Reads are only consumed to notice the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			logs.Infof("client %s disconnected", r.RemoteAddr)
			return
		case d, ok := <-sub.Events():
			if !ok {
				reason := "stream closed"
				if err := sub.Err(); err != nil {
					reason = err.Error()
				}
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
				logs.Infof("client %s dropped: %s", r.RemoteAddr, reason)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, d.Line); err != nil {
				logs.Errorf("write to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}
