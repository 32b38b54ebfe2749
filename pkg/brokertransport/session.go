package brokertransport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/pkg/logger"
)

// Server upgrades incoming connections to WebSocket and wires each one into
// a Hub. Grounded on the teacher's Server/handleSocket route registration.
type Server struct {
	hub *Hub
	mux *http.ServeMux
	log logger.Component
}

// NewServer creates a Server backed by hub.
func NewServer(hub *Hub) *Server {
	s := &Server{hub: hub, mux: http.NewServeMux(), log: logger.With("brokertransport")}
	s.mux.HandleFunc("/broker", s.handleSocket)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	s.log.Info("session %d connected", id)

	done := make(chan struct{})
	go s.writeLoop(conn, events, done)

	s.readLoop(r.Context(), conn, id)
	<-done

	s.log.Info("session %d disconnected", id)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id SessionID) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		var req protocol.BrokerRequest
		err := wsjson.Read(readCtx, conn, &req)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			s.log.Warn("session %d read error: %v", id, err)
			return
		}
		s.hub.Handle(id, &req)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, events <-chan *protocol.BrokerEvent, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := wsjson.Write(writeCtx, conn, ev)
		cancel()
		if err != nil {
			return
		}
	}
}

// Client is the editor-facing half of the loopback transport: it sends
// wire-form protocol.BrokerRequest values and delivers
// incoming BrokerEvents to a caller-supplied handler. Grounded on the
// teacher's Connection, generalized from a fixed ServerMsg handler to a
// caller-supplied callback since internal/syncmgr, not this package, owns
// the state machine that interprets events.
type Client struct {
	conn    *websocket.Conn
	sendMu  sync.Mutex
	onEvent func(*protocol.BrokerEvent)
}

// Dial connects to a broker Server at url and starts delivering events to
// onEvent until ctx is done or the connection closes.
func Dial(ctx context.Context, url string, onEvent func(*protocol.BrokerEvent)) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	c := &Client{conn: conn, onEvent: onEvent}
	go c.readLoop(ctx)
	return c, nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		var ev protocol.BrokerEvent
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			return
		}
		c.onEvent(&ev)
	}
}

// Send transmits an already-built BrokerRequest over the wire; it does no
// conversion from syncmgr.PendingRequest.
func (c *Client) Send(ctx context.Context, req *protocol.BrokerRequest) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return wsjson.Write(ctx, c.conn, req)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
