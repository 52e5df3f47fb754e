package observer

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/protocol"
)

type sink struct {
	mu   sync.Mutex
	acts []protocol.ActMsg
	err  error
}

func (s *sink) Submit(act protocol.ActMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.acts = append(s.acts, act)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acts)
}

func dial(t *testing.T, srv *Server, actors ...string) *websocket.Conn {
	t.Helper()
	hs := httptest.NewServer(srv.WSHandler())
	t.Cleanup(hs.Close)

	before := srv.Sessions()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Actors:          actors,
	}))
	require.Eventually(t, func() bool { return srv.Sessions() == before+1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestServer_StreamsStepsAndTasks(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	conn := dial(t, srv)

	srv.RecordStep(actions.StepRecord{TaskID: "T1", Actor: "bob", Step: "walk_to", StartTick: 1, EndTick: 4, OK: true})
	m := readJSON(t, conn)
	assert.Equal(t, protocol.TypeStep, m["type"])
	assert.Equal(t, "walk_to", m["step"])
	assert.Equal(t, true, m["ok"])

	require.NoError(t, srv.RecordTask(protocol.TaskMsg{TaskID: "T1", Actor: "bob", State: protocol.TaskFinished}))
	m = readJSON(t, conn)
	assert.Equal(t, protocol.TypeTask, m["type"])
	assert.Equal(t, protocol.Version, m["protocol_version"])
	assert.Equal(t, protocol.TaskFinished, m["state"])
}

func TestServer_ActorFilter(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	conn := dial(t, srv, "alice")

	srv.RecordStep(actions.StepRecord{Actor: "bob", Step: "say"})
	srv.RecordStep(actions.StepRecord{Actor: "alice", Step: "buy"})

	m := readJSON(t, conn)
	assert.Equal(t, "alice", m["actor"])
	assert.Equal(t, "buy", m["step"])
	assert.Equal(t, uint64(1), srv.Sent())
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	hs := httptest.NewServer(srv.WSHandler())
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": protocol.TypeAct}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, 0, srv.Sessions())
}

func TestServer_ForwardsAct(t *testing.T) {
	in := &sink{}
	srv := NewServer(zerolog.Nop(), WithInput(in))
	conn := dial(t, srv)

	act := protocol.NewAct("bob", 3, []protocol.InstantReq{{ID: "I1", Type: "SAY", Text: "hi"}}, nil)
	require.NoError(t, conn.WriteJSON(act))
	require.Eventually(t, func() bool { return in.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	in.mu.Lock()
	got := in.acts[0]
	in.mu.Unlock()
	assert.Equal(t, "bob", got.AgentID)
	require.Len(t, got.Instants, 1)
	assert.Equal(t, "hi", got.Instants[0].Text)
}

func TestServer_ActRejections(t *testing.T) {
	t.Run("input disabled", func(t *testing.T) {
		srv := NewServer(zerolog.Nop())
		conn := dial(t, srv)
		require.NoError(t, conn.WriteJSON(protocol.NewAct("bob", 0, nil, nil)))
		m := readJSON(t, conn)
		assert.Equal(t, "REJECTED", m["event"])
		assert.Equal(t, protocol.ErrBadRequest, m["code"])
	})

	t.Run("sink error", func(t *testing.T) {
		srv := NewServer(zerolog.Nop(), WithInput(&sink{err: errors.New("unknown agent")}))
		conn := dial(t, srv)
		require.NoError(t, conn.WriteJSON(protocol.NewAct("ghost", 0, nil, nil)))
		m := readJSON(t, conn)
		assert.Equal(t, protocol.ErrBadRequest, m["code"])
		assert.Equal(t, "unknown agent", m["message"])
	})

	t.Run("garbage", func(t *testing.T) {
		srv := NewServer(zerolog.Nop(), WithInput(&sink{}))
		conn := dial(t, srv)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
		m := readJSON(t, conn)
		assert.Equal(t, protocol.ErrProtoBadRequest, m["code"])
	})
}

func TestServer_UnregistersOnClose(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	conn := dial(t, srv)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:5555"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.False(t, isLoopbackRemote("10.0.0.2:80"))
	assert.False(t, isLoopbackRemote("not-an-ip"))
}
