package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"moonrise.game/internal/protocol"
)

// Engine is the part of the simulation a connection talks to.
type Engine interface {
	Submit(cmd protocol.CommandMsg) error
	Attach(out chan []byte) (detach func())
	Params() protocol.GameParams
	CatalogDigests() protocol.CatalogDigests
}

type Server struct {
	engine Engine
	log    *log.Logger

	upgrader websocket.Upgrader
	// QueueSize is the per-connection notification buffer.
	QueueSize int
	// PongWait is how long a client may stay silent, pongs included, before
	// it is dropped. PingPeriod must be shorter.
	PongWait   time.Duration
	PingPeriod time.Duration

	sessions atomic.Int64
}

const (
	writeWait         = 5 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = defaultPongWait * 9 / 10
)

func NewServer(e Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		QueueSize:  64,
		PongWait:   defaultPongWait,
		PingPeriod: defaultPingPeriod,
	}
}

// Sessions is the number of connected clients.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

// Handler serves the game protocol: HELLO/WELCOME, then commands in and
// notifications out.
func (s *Server) Handler() http.HandlerFunc { return s.handler(false) }

// ObserveHandler streams notifications to loopback clients and refuses every
// command.
func (s *Server) ObserveHandler() http.HandlerFunc {
	h := s.handler(true)
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) handler(readOnly bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.log.Printf("session %s connected from %s (read_only=%v)", sessionID, r.RemoteAddr, readOnly)

		out := make(chan []byte, s.queueSize())
		detach := s.engine.Attach(out)
		defer detach()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		pongWait, pingPeriod := s.keepalive()
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		// Writer goroutine. It also pings so watch-only clients stay connected.
		done := make(chan struct{})
		go func() {
			defer close(done)
			ping := time.NewTicker(pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Everyone gets the current state right after WELCOME.
		_ = s.engine.Submit(protocol.CommandMsg{Type: protocol.TypeSnapshotRequest, ProtocolVersion: protocol.Version})

		// Reader loop. Any frame, pongs included, extends the deadline.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if rej, ok := s.route(msg, readOnly); !ok {
				b, _ := json.Marshal(rej)
				select {
				case out <- b:
				default:
				}
			}
		}
		cancel()
		<-done
		s.log.Printf("session %s closed", sessionID)
	}
}

// route decodes and submits one command. It returns a rejection when the
// message never reaches the engine.
func (s *Server) route(msg []byte, readOnly bool) (protocol.CommandRejectedMsg, bool) {
	reject := func(cmd protocol.CommandMsg, code, text string) (protocol.CommandRejectedMsg, bool) {
		return protocol.CommandRejectedMsg{
			Type:            protocol.TypeCommandRejected,
			ProtocolVersion: protocol.Version,
			ReqID:           cmd.ReqID,
			Command:         cmd.Type,
			Code:            code,
			Message:         text,
		}, false
	}

	var cmd protocol.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return reject(cmd, protocol.ErrBadRequest, "malformed message")
	}
	if !protocol.IsCommand(cmd.Type) {
		return reject(cmd, protocol.ErrBadRequest, "unknown message type")
	}
	if cmd.ProtocolVersion != "" && cmd.ProtocolVersion != protocol.Version {
		return reject(cmd, protocol.ErrBadRequest, "bad protocol_version")
	}
	if readOnly && cmd.Type != protocol.TypeSnapshotRequest {
		return reject(cmd, protocol.ErrBadRequest, "read-only session")
	}
	if err := s.engine.Submit(cmd); err != nil {
		return reject(cmd, protocol.ErrBusy, err.Error())
	}
	return protocol.CommandRejectedMsg{}, true
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}

	sessionID = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Params:          s.engine.Params(),
		Catalogs:        s.engine.CatalogDigests(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	return sessionID, true
}

func (s *Server) queueSize() int {
	if s.QueueSize <= 0 {
		return 64
	}
	return s.QueueSize
}

// keepalive returns the pong wait and ping period, falling back to the
// defaults when unset or when the ping would not beat the deadline.
func (s *Server) keepalive() (pongWait, pingPeriod time.Duration) {
	pongWait, pingPeriod = s.PongWait, s.PingPeriod
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = pongWait * 9 / 10
	}
	return pongWait, pingPeriod
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
