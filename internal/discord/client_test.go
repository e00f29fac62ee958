// Tests for [Client] against an in-memory Discord peer built on net.Pipe.
package discord

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
)

// ///////////////////////////////////////////////
// Test Helpers
// ///////////////////////////////////////////////

// peer is the Discord side of a net.Pipe.
type peer struct {
	t    *testing.T
	conn net.Conn
}

// newPipeClient returns a client whose dial hands out the client end of a
// fresh pipe, and the peer holding the other end.
func newPipeClient(t *testing.T) (*Client, *peer) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	c := NewClient("test-app")
	c.dial = func() (net.Conn, error) { return client, nil }
	return c, &peer{t: t, conn: server}
}

// read decodes the next frame as a JSON object.
func (p *peer) read() (Opcode, map[string]any) {
	p.t.Helper()
	f, err := ReadFrame(p.conn)
	if err != nil {
		p.t.Errorf("peer read: %v", err)
		return 0, nil
	}
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		p.t.Errorf("peer decode: %v", err)
	}
	return f.Op, m
}

// send writes v as a frame with the given opcode.
func (p *peer) send(op Opcode, v any) {
	p.t.Helper()
	if err := WriteFrame(p.conn, op, v); err != nil {
		p.t.Errorf("peer write: %v", err)
	}
}

// ready completes a handshake from the peer side.
func (p *peer) ready() map[string]any {
	p.t.Helper()
	op, m := p.read()
	if op != OpHandshake {
		p.t.Errorf("opcode = %d, want handshake", op)
	}
	p.send(OpFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"})
	return m
}

// connect runs Connect against the peer and fails the test on error.
func connect(t *testing.T, c *Client, p *peer) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Connect() }()
	p.ready()
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// ///////////////////////////////////////////////
// Connect
// ///////////////////////////////////////////////

func TestClient_ConnectHandshake(t *testing.T) {
	c, p := newPipeClient(t)

	done := make(chan error, 1)
	go func() { done <- c.Connect() }()

	hs := p.ready()
	if hs["client_id"] != "test-app" {
		t.Errorf("client_id = %v, want test-app", hs["client_id"])
	}
	if v, _ := hs["v"].(float64); v != 1 {
		t.Errorf("v = %v, want 1", hs["v"])
	}
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Error("Connected() = false after handshake")
	}
}

func TestClient_ConnectRejected(t *testing.T) {
	c, p := newPipeClient(t)

	done := make(chan error, 1)
	go func() { done <- c.Connect() }()

	p.read()
	p.send(OpFrame, map[string]any{
		"evt":  "ERROR",
		"data": map[string]any{"code": 4000, "message": "Invalid Client ID"},
	})

	err := <-done
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after rejected handshake")
	}
}

func TestClient_ConnectDialFailure(t *testing.T) {
	c := NewClient("test-app")
	c.dial = func() (net.Conn, error) { return nil, ErrIPCNotAvailable }
	if err := c.Connect(); !errors.Is(err, ErrIPCNotAvailable) {
		t.Fatalf("err = %v, want ErrIPCNotAvailable", err)
	}
}

// ///////////////////////////////////////////////
// SetActivity / ClearActivity
// ///////////////////////////////////////////////

func TestClient_SetActivity(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	done := make(chan error, 1)
	go func() {
		done <- c.SetActivity(&Activity{
			State:      "Working on main.go",
			Details:    "In lspcord",
			Timestamps: &Timestamps{Start: 1700000000},
			Buttons:    []Button{{Label: "View Repository", URL: "https://example.com/r"}},
		})
	}()

	op, m := p.read()
	if op != OpFrame {
		t.Fatalf("opcode = %d, want frame", op)
	}
	if m["cmd"] != "SET_ACTIVITY" {
		t.Errorf("cmd = %v", m["cmd"])
	}
	if n, _ := m["nonce"].(string); n == "" {
		t.Error("nonce missing")
	}
	args := m["args"].(map[string]any)
	if pid, _ := args["pid"].(float64); int(pid) != os.Getpid() {
		t.Errorf("pid = %v, want %d", args["pid"], os.Getpid())
	}
	act := args["activity"].(map[string]any)
	if act["state"] != "Working on main.go" || act["details"] != "In lspcord" {
		t.Errorf("activity = %v", act)
	}
	if _, ok := act["assets"]; ok {
		t.Error("assets should be omitted when nil")
	}
	buttons := act["buttons"].([]any)
	if len(buttons) != 1 {
		t.Fatalf("buttons = %v", buttons)
	}

	p.send(OpFrame, map[string]any{"cmd": "SET_ACTIVITY", "evt": nil})
	if err := <-done; err != nil {
		t.Fatalf("SetActivity: %v", err)
	}
}

func TestClient_ClearActivity(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	done := make(chan error, 1)
	go func() { done <- c.ClearActivity() }()

	_, m := p.read()
	args := m["args"].(map[string]any)
	if v, ok := args["activity"]; !ok || v != nil {
		t.Errorf("activity = %v, want explicit null", v)
	}
	p.send(OpFrame, map[string]any{"cmd": "SET_ACTIVITY"})
	if err := <-done; err != nil {
		t.Fatalf("ClearActivity: %v", err)
	}
}

func TestClient_NoncesIncrease(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	seen := map[string]bool{}
	for range 3 {
		done := make(chan error, 1)
		go func() { done <- c.SetActivity(&Activity{State: "x"}) }()
		_, m := p.read()
		n := m["nonce"].(string)
		if seen[n] {
			t.Fatalf("duplicate nonce %s", n)
		}
		seen[n] = true
		p.send(OpFrame, map[string]any{"cmd": "SET_ACTIVITY"})
		if err := <-done; err != nil {
			t.Fatalf("SetActivity: %v", err)
		}
	}
}

func TestClient_AnswersPing(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	done := make(chan error, 1)
	go func() { done <- c.SetActivity(&Activity{State: "x"}) }()

	p.read()
	p.send(OpPing, map[string]any{"n": 7})
	op, m := p.read()
	if op != OpPong {
		t.Fatalf("opcode = %d, want pong", op)
	}
	if n, _ := m["n"].(float64); n != 7 {
		t.Errorf("pong payload = %v", m)
	}
	p.send(OpFrame, map[string]any{"cmd": "SET_ACTIVITY"})
	if err := <-done; err != nil {
		t.Fatalf("SetActivity: %v", err)
	}
}

func TestClient_RejectedCommandKeepsSocket(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	done := make(chan error, 1)
	go func() { done <- c.SetActivity(&Activity{State: "x"}) }()
	p.read()
	p.send(OpFrame, map[string]any{"evt": "ERROR", "data": map[string]any{"code": 4002, "message": "bad payload"}})

	if err := <-done; !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if !c.Connected() {
		t.Error("a rejected payload should not drop the socket")
	}
}

func TestClient_PeerCloseDropsSocket(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	done := make(chan error, 1)
	go func() { done <- c.SetActivity(&Activity{State: "x"}) }()
	p.read()
	p.send(OpClose, map[string]any{"code": 1000})

	if err := <-done; !errors.Is(err, ErrClosedByPeer) {
		t.Fatalf("err = %v, want ErrClosedByPeer", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after CLOSE frame")
	}
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := NewClient("test-app")
	if err := c.SetActivity(&Activity{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

// ///////////////////////////////////////////////
// Close
// ///////////////////////////////////////////////

func TestClient_CloseUnconnected(t *testing.T) {
	c := NewClient("test-app")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClient_CloseSendsCloseFrame(t *testing.T) {
	c, p := newPipeClient(t)
	connect(t, c, p)

	got := make(chan Opcode, 1)
	go func() {
		f, err := ReadFrame(p.conn)
		if err == nil {
			got <- f.Op
		}
		close(got)
	}()

	c.Close()
	if op := <-got; op != OpClose {
		t.Errorf("opcode = %d, want close", op)
	}
	if c.Connected() {
		t.Error("Connected() = true after Close")
	}
}
