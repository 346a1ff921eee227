package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/tuning"
)

func startEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	e, err := engine.New(engine.Config{Catalogs: cats, Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// await reads until a message of type typ arrives.
func await(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == typ {
			return b
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(await(t, conn, protocol.TypeWelcome), &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return w
}

func TestServer_HandshakeAndCommands(t *testing.T) {
	e := startEngine(t)
	srv := NewServer(e, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	w := hello(t, conn)
	if w.SessionID == "" || w.Params.TicksPerDay != 24 || w.Catalogs.Jobs == "" {
		t.Fatalf("welcome: %+v", w)
	}

	// Initial state arrives without asking.
	var u protocol.UpdateMsg
	if err := json.Unmarshal(await(t, conn, protocol.TypeUpdate), &u); err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.State.Player.ActiveJob != "Simple Villager" {
		t.Fatalf("initial state: %+v", u.State.Player)
	}

	send(t, conn, protocol.CommandMsg{Type: protocol.TypeSetJob, ProtocolVersion: protocol.Version, ReqID: "r1", JobName: "Alpha"})
	var rej protocol.CommandRejectedMsg
	if err := json.Unmarshal(await(t, conn, protocol.TypeCommandRejected), &rej); err != nil {
		t.Fatalf("rejected: %v", err)
	}
	if rej.ReqID != "r1" || rej.Code != protocol.ErrLocked {
		t.Fatalf("rejection: %+v", rej)
	}

	send(t, conn, protocol.CommandMsg{Type: protocol.TypeSetJob, ProtocolVersion: protocol.Version, JobName: "Woodcutter"})
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := json.Unmarshal(await(t, conn, protocol.TypeUpdate), &u); err != nil {
			t.Fatalf("update: %v", err)
		}
		if u.State.Player.ActiveJob == "Woodcutter" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never changed")
		}
	}
	if srv.Sessions() != 1 {
		t.Fatalf("sessions: %d", srv.Sessions())
	}
}

func TestServer_RejectsMalformedCommand(t *testing.T) {
	e := startEngine(t)
	ts := httptest.NewServer(NewServer(e, nil).Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	hello(t, conn)
	send(t, conn, map[string]string{"type": "TELEPORT", "req_id": "x"})
	var rej protocol.CommandRejectedMsg
	if err := json.Unmarshal(await(t, conn, protocol.TypeCommandRejected), &rej); err != nil {
		t.Fatalf("rejected: %v", err)
	}
	if rej.Code != protocol.ErrBadRequest || rej.ReqID != "x" {
		t.Fatalf("rejection: %+v", rej)
	}
}

func TestServer_RequiresHello(t *testing.T) {
	e := startEngine(t)
	ts := httptest.NewServer(NewServer(e, nil).Handler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	send(t, conn, protocol.CommandMsg{Type: protocol.TypeStart, ProtocolVersion: protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestServer_ObserveIsReadOnly(t *testing.T) {
	e := startEngine(t)
	ts := httptest.NewServer(NewServer(e, nil).ObserveHandler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	hello(t, conn)
	send(t, conn, protocol.CommandMsg{Type: protocol.TypeStart, ProtocolVersion: protocol.Version})
	var rej protocol.CommandRejectedMsg
	if err := json.Unmarshal(await(t, conn, protocol.TypeCommandRejected), &rej); err != nil {
		t.Fatalf("rejected: %v", err)
	}
	if rej.Command != protocol.TypeStart || rej.Code != protocol.ErrBadRequest {
		t.Fatalf("rejection: %+v", rej)
	}
	if e.Snapshot().Running {
		t.Fatalf("observer started the game")
	}
}

func waitSessions(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for srv.Sessions() != want {
		if time.Now().After(deadline) {
			t.Fatalf("sessions: got %d want %d", srv.Sessions(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_SilentWatcherKeptAlive(t *testing.T) {
	e := startEngine(t)
	srv := NewServer(e, nil)
	srv.PongWait = 300 * time.Millisecond
	srv.PingPeriod = 100 * time.Millisecond
	ts := httptest.NewServer(srv.ObserveHandler())
	defer ts.Close()

	conn := dial(t, ts.URL)
	hello(t, conn)
	_ = conn.SetReadDeadline(time.Time{})

	var pings atomic.Int64
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	types := make(chan string, 64)
	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				close(types)
				return
			}
			if base, err := protocol.DecodeBase(b); err == nil {
				select {
				case types <- base.Type:
				default:
				}
			}
		}
	}()

	// Several read deadlines pass without the client sending a message.
	time.Sleep(time.Second)
	if srv.Sessions() != 1 {
		t.Fatalf("silent watcher dropped: sessions=%d", srv.Sessions())
	}
	if pings.Load() < 3 {
		t.Fatalf("pings: %d", pings.Load())
	}

	send(t, conn, protocol.CommandMsg{Type: protocol.TypeSnapshotRequest, ProtocolVersion: protocol.Version})
	timeout := time.After(3 * time.Second)
	for {
		select {
		case typ, ok := <-types:
			if !ok {
				t.Fatalf("connection closed")
			}
			if typ == protocol.TypeUpdate {
				return
			}
		case <-timeout:
			t.Fatalf("no UPDATE after idle period")
		}
	}
}

func TestServer_DropsClientThatNeverPongs(t *testing.T) {
	e := startEngine(t)
	srv := NewServer(e, nil)
	srv.PongWait = 200 * time.Millisecond
	srv.PingPeriod = 50 * time.Millisecond
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// After the handshake nothing reads, so pings are never answered.
	conn := dial(t, ts.URL)
	hello(t, conn)
	waitSessions(t, srv, 1)
	waitSessions(t, srv, 0)
}

func TestServer_KeepaliveDefaults(t *testing.T) {
	s := &Server{PongWait: time.Second, PingPeriod: 2 * time.Second}
	if w, p := s.keepalive(); w != time.Second || p != 900*time.Millisecond {
		t.Fatalf("ping beyond deadline: wait=%v period=%v", w, p)
	}
	s = &Server{}
	if w, p := s.keepalive(); w != defaultPongWait || p != defaultPingPeriod {
		t.Fatalf("zero value: wait=%v period=%v", w, p)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:443":   false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
