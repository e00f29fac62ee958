// Package discord speaks Discord's local RPC protocol over its IPC socket.
//
// A [Client] owns one socket. It performs the version-1 handshake, sends
// SET_ACTIVITY commands, and reads the reply to every command so that
// rejected payloads surface as errors rather than vanishing. Socket
// discovery lives in the per-platform conn_*.go files.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

var (
	// ErrNotConnected is returned when a command is sent without a socket.
	ErrNotConnected = errors.New("not connected")
	// ErrClosedByPeer is returned when Discord sends a CLOSE frame.
	ErrClosedByPeer = errors.New("connection closed by discord")
	// ErrRejected wraps an ERROR event returned for a command.
	ErrRejected = errors.New("command rejected")
)

// replyTimeout bounds how long a command waits for Discord's reply.
const replyTimeout = 5 * time.Second

// ///////////////////////////////////////////////
// Payload Types
// ///////////////////////////////////////////////

// Button is a clickable link shown under the activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps anchors the "elapsed" counter. Start is in Unix seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image URLs or asset keys and their hover text.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the rich presence object carried by SET_ACTIVITY.
type Activity struct {
	State      string      `json:"state,omitempty"`
	Details    string      `json:"details,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// reply is the subset of a command response the client inspects.
type reply struct {
	Cmd  string `json:"cmd"`
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client is a single Discord IPC connection. It is safe for concurrent use.
type Client struct {
	appID string
	// dial opens the raw socket; replaced in tests.
	dial func() (net.Conn, error)

	mu    sync.Mutex
	conn  net.Conn
	nonce uint64
}

// NewClient returns an unconnected client for the given application ID.
func NewClient(appID string) *Client {
	return &Client{appID: appID, dial: dialDiscord}
}

// AppID returns the application ID the client handshakes with.
func (c *Client) AppID() string { return c.appID }

// Connect dials Discord and performs the handshake, replacing any
// existing socket.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn
	if err := c.handshakeLocked(); err != nil {
		c.dropLocked()
		return err
	}
	return nil
}

// SetActivity publishes activity for this process.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandLocked("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": activity,
	})
}

// ClearActivity removes this process's activity.
func (c *Client) ClearActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandLocked("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": nil,
	})
}

// Close sends a CLOSE frame and releases the socket. Closing an
// unconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = WriteFrame(c.conn, OpClose, map[string]any{})
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("close ipc socket: %w", err)
	}
	return nil
}

// Connected reports whether a socket is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// dropLocked closes and forgets the current socket. The caller holds c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// handshakeLocked sends the handshake and waits for READY. The caller holds c.mu.
func (c *Client) handshakeLocked() error {
	if err := WriteFrame(c.conn, OpHandshake, map[string]any{
		"v":         1,
		"client_id": c.appID,
	}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	r, err := c.awaitReplyLocked()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if r.Evt != "READY" {
		return fmt.Errorf("handshake: unexpected event %q", r.Evt)
	}
	return nil
}

// commandLocked writes one command frame and checks its reply. Any I/O
// failure drops the socket so that Connected reports false. The caller
// holds c.mu.
func (c *Client) commandLocked(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.nonce++
	err := WriteFrame(c.conn, OpFrame, map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": strconv.FormatUint(c.nonce, 10),
	})
	if err != nil {
		c.dropLocked()
		return fmt.Errorf("%s: %w", cmd, err)
	}
	if _, err := c.awaitReplyLocked(); err != nil {
		if !errors.Is(err, ErrRejected) {
			c.dropLocked()
		}
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

// awaitReplyLocked reads frames until a data frame arrives, answering
// pings along the way. The caller holds c.mu.
func (c *Client) awaitReplyLocked() (reply, error) {
	conn := c.conn
	_ = conn.SetReadDeadline(time.Now().Add(replyTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		f, err := ReadFrame(conn)
		if err != nil {
			return reply{}, err
		}
		switch f.Op {
		case OpPing:
			if _, err := conn.Write(mustAppend(OpPong, f.Data)); err != nil {
				return reply{}, fmt.Errorf("pong: %w", err)
			}
			continue
		case OpClose:
			c.dropLocked()
			return reply{}, ErrClosedByPeer
		case OpFrame:
		default:
			return reply{}, fmt.Errorf("unexpected opcode %d", f.Op)
		}

		var r reply
		if err := json.Unmarshal(f.Data, &r); err != nil {
			return reply{}, fmt.Errorf("decode reply: %w", err)
		}
		if r.Evt == "ERROR" {
			return r, fmt.Errorf("%w: %s (code %d)", ErrRejected, r.Data.Message, r.Data.Code)
		}
		return r, nil
	}
}

// mustAppend frames an already-validated payload echoed back from Discord.
func mustAppend(op Opcode, payload []byte) []byte {
	buf, _ := AppendFrame(nil, op, payload)
	return buf
}
