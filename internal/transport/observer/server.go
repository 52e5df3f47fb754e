// Package observer streams script progress to websocket clients.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/protocol"
)

// InputSink accepts ACT frames from clients that are allowed to drive the
// world directly.
type InputSink interface {
	Submit(act protocol.ActMsg) error
}

type session struct {
	id     string
	out    chan []byte
	mu     sync.Mutex
	actors map[string]bool
}

func (s *session) wants(actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors) == 0 || s.actors[actor]
}

func (s *session) subscribe(actors []string) {
	m := make(map[string]bool, len(actors))
	for _, a := range actors {
		if a = strings.TrimSpace(a); a != "" {
			m[a] = true
		}
	}
	s.mu.Lock()
	s.actors = m
	s.mu.Unlock()
}

type Server struct {
	log   zerolog.Logger
	input InputSink

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type Option func(*Server)

// WithInput lets clients send ACT frames, which are validated and
// forwarded to sink.
func WithInput(sink InputSink) Option {
	return func(s *Server) { s.input = sink }
}

func NewServer(logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		log:      logger.With().Str("component", "observer").Logger(),
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecordStep broadcasts a finished step to every interested session.
func (s *Server) RecordStep(r actions.StepRecord) {
	s.broadcast(r.Actor, r.Msg())
}

func (s *Server) RecordTask(m protocol.TaskMsg) error {
	m.Type = protocol.TypeTask
	if m.ProtocolVersion == "" {
		m.ProtocolVersion = protocol.Version
	}
	s.broadcast(m.Actor, m)
	return nil
}

func (s *Server) broadcast(actor string, v any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal broadcast")
		return
	}
	for _, sess := range s.sessions {
		if !sess.wants(actor) {
			continue
		}
		select {
		case sess.out <- b:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) Sent() uint64    { return s.sent.Load() }
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sess := &session{id: fmt.Sprintf("O%d", s.nextID.Add(1)), out: make(chan []byte, 1024)}
		sess.subscribe(sub.Actors)
		s.register(sess)
		defer s.unregister(sess.id)
		log := s.log.With().Str("session", sess.id).Logger()
		log.Info().Strs("actors", sub.Actors).Msg("observer subscribed")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates and, when enabled, ACT input.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleFrame(sess, msg, log)
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		log.Info().Msg("observer left")
	}
}

func (s *Server) handleFrame(sess *session, msg []byte, log zerolog.Logger) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reply(sess, rejection(protocol.ErrProtoBadRequest, "bad json"))
		return
	}
	switch base.Type {
	case protocol.TypeSubscribe:
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.ProtocolVersion != protocol.Version {
			s.reply(sess, rejection(protocol.ErrProtoBadRequest, "bad subscribe"))
			return
		}
		sess.subscribe(sub.Actors)
	case protocol.TypeAct:
		if s.input == nil {
			s.reply(sess, rejection(protocol.ErrBadRequest, "input disabled"))
			return
		}
		act, err := protocol.DecodeAct(msg)
		if err != nil {
			s.reply(sess, rejection(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		if err := s.input.Submit(act); err != nil {
			s.reply(sess, rejection(protocol.ErrBadRequest, err.Error()))
			return
		}
		log.Debug().Str("agent", act.AgentID).Int("instants", len(act.Instants)).Int("tasks", len(act.Tasks)).Msg("act forwarded")
	default:
		s.reply(sess, rejection(protocol.ErrProtoBadRequest, "unknown message type"))
	}
}

func rejection(code, message string) protocol.Event {
	return protocol.Event{
		"type":    protocol.TypeEvent,
		"event":   "REJECTED",
		"code":    code,
		"message": message,
	}
}

func (s *Server) reply(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
		s.dropped.Add(1)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ListenAndServe serves the websocket endpoint at /v1/observe until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/v1/observe", s.WSHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("observer listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	}
}
