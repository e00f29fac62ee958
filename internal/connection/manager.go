// Package connection owns the long-lived link to Discord: creating the IPC
// client, connecting with bounded exponential backoff, reconnecting after a
// failed send, and publishing or clearing the presence.
//
// A [Manager] is the only component that performs presence I/O. Its mutex
// serializes every call that touches the socket, so exactly one
// set/clear request is in flight at a time.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/lspcord/internal/activity"
	"tools.zach/dev/lspcord/internal/discord"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

var (
	// ErrConnection wraps every client creation, connect, send and close failure.
	ErrConnection = errors.New("discord connection error")
	// ErrNotCreated is returned when an operation runs before Create.
	ErrNotCreated = errors.New("discord client not created")
	// ErrRetriesExhausted is returned when ConnectWithRetry gives up.
	ErrRetriesExhausted = errors.New("connection retries exhausted")
)

// ///////////////////////////////////////////////
// Backoff
// ///////////////////////////////////////////////

const (
	// MaxAttempts is how many connects ConnectWithRetry makes.
	MaxAttempts = 5
	// InitialDelay is the pause after the first failed attempt.
	InitialDelay = 500 * time.Millisecond
	// MaxDelay caps the doubling delay.
	MaxDelay = 10 * time.Second
)

// RetryDelay returns the pause that follows failed attempt number attempt
// (0-based). The sequence starts at InitialDelay, doubles, and is capped at
// MaxDelay.
func RetryDelay(attempt int) time.Duration {
	d := InitialDelay
	for range attempt {
		d *= 2
		if d >= MaxDelay {
			return MaxDelay
		}
	}
	return d
}

// ///////////////////////////////////////////////
// State
// ///////////////////////////////////////////////

// State is the connection lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateCreated
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ///////////////////////////////////////////////
// Manager
// ///////////////////////////////////////////////

// Client is the IPC surface the manager drives. *discord.Client satisfies it.
type Client interface {
	Connect() error
	SetActivity(*discord.Activity) error
	ClearActivity() error
	Close() error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the constructor used by Create.
func WithClientFactory(f func(appID string) Client) Option {
	return func(m *Manager) { m.newClient = f }
}

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithSleep replaces the backoff wait. The function must return ctx.Err()
// when ctx ends before d elapses.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = f }
}

// WithStartTime fixes the "elapsed since" anchor.
func WithStartTime(t time.Time) Option {
	return func(m *Manager) { m.startedAt = t.Unix() }
}

// Manager is safe for concurrent use.
type Manager struct {
	newClient func(appID string) Client
	sleep     func(ctx context.Context, d time.Duration) error
	log       *slog.Logger
	// startedAt is the Unix-seconds anchor sent with every activity.
	startedAt int64

	mu     sync.Mutex
	client Client
	state  State
}

// NewManager returns a manager in StateUninitialized. The elapsed-time
// anchor is taken now unless WithStartTime overrides it.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		newClient: func(appID string) Client { return discord.NewClient(appID) },
		sleep:     sleepContext,
		log:       slog.Default(),
		startedAt: time.Now().Unix(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartedAt returns the Unix-seconds anchor for the elapsed counter.
func (m *Manager) StartedAt() int64 { return m.startedAt }

// State returns the current lifecycle stage.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the last connect or send succeeded.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Create builds the IPC client for appID, replacing any previous client.
func (m *Manager) Create(appID string) error {
	if appID == "" {
		return fmt.Errorf("%w: empty application id", ErrConnection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.state == StateConnected {
		_ = m.client.Close()
	}
	m.client = m.newClient(appID)
	m.state = StateCreated
	m.log.Info("discord client created", "app_id", appID)
	return nil
}

// Connect makes a single connection attempt.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

// ConnectWithRetry makes up to MaxAttempts connects, pausing RetryDelay
// between them. Cancelling ctx stops the wait early.
func (m *Manager) ConnectWithRetry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectWithRetryLocked(ctx)
}

// Reconnect closes the current socket, ignoring errors, then runs
// ConnectWithRetry.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectLocked(ctx)
}

// Kill closes the socket and moves to StateClosed. Killing a closed or
// never-created manager is a no-op.
func (m *Manager) Kill() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killLocked()
}

// ClearActivity removes the presence.
func (m *Manager) ClearActivity() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return ErrNotCreated
	}
	if err := m.client.ClearActivity(); err != nil {
		m.markDisconnectedLocked()
		return fmt.Errorf("%w: clear activity: %w", ErrConnection, err)
	}
	m.log.Debug("activity cleared")
	return nil
}

// ChangeActivity publishes fields. A non-empty repoURL adds a
// "View Repository" button.
func (m *Manager) ChangeActivity(fields activity.Fields, repoURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(fields, repoURL)
}

// ChangeActivityWithReconnect reconnects first when the link is down and
// then sends. A failed reconnect is returned without sending; a failed send
// leaves the manager disconnected so the next call retries.
func (m *Manager) ChangeActivityWithReconnect(ctx context.Context, fields activity.Fields, repoURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		m.log.Warn("discord not connected, reconnecting", "state", m.state)
		if err := m.reconnectLocked(ctx); err != nil {
			return err
		}
	}
	if err := m.changeLocked(fields, repoURL); err != nil {
		m.log.Warn("activity update failed, marked disconnected", "error", err)
		return err
	}
	return nil
}

// ///////////////////////////////////////////////
// Locked Helpers
// ///////////////////////////////////////////////

func (m *Manager) connectLocked() error {
	if m.client == nil {
		return ErrNotCreated
	}
	if err := m.client.Connect(); err != nil {
		if m.state != StateCreated {
			m.state = StateDisconnected
		}
		return fmt.Errorf("%w: connect: %w", ErrConnection, err)
	}
	m.state = StateConnected
	m.log.Info("connected to discord")
	return nil
}

func (m *Manager) connectWithRetryLocked(ctx context.Context) error {
	var lastErr error
	for attempt := range MaxAttempts {
		if attempt > 0 {
			delay := RetryDelay(attempt - 1)
			m.log.Warn("connect attempt failed, retrying",
				"attempt", attempt, "max", MaxAttempts, "delay", delay, "error", lastErr)
			if err := m.sleep(ctx, delay); err != nil {
				return fmt.Errorf("%w: %w", ErrConnection, err)
			}
		}
		lastErr = m.connectLocked()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNotCreated) {
			return lastErr
		}
	}
	m.log.Error("giving up on discord", "attempts", MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w: %w after %d attempts: %w", ErrConnection, ErrRetriesExhausted, MaxAttempts, lastErr)
}

func (m *Manager) reconnectLocked(ctx context.Context) error {
	if m.client == nil {
		return ErrNotCreated
	}
	if err := m.killLocked(); err != nil {
		m.log.Debug("close before reconnect failed", "error", err)
	}
	return m.connectWithRetryLocked(ctx)
}

func (m *Manager) killLocked() error {
	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed
	if m.client == nil {
		return nil
	}
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrConnection, err)
	}
	return nil
}

func (m *Manager) changeLocked(fields activity.Fields, repoURL string) error {
	if m.client == nil {
		return ErrNotCreated
	}
	if err := m.client.SetActivity(m.buildActivity(fields, repoURL)); err != nil {
		m.markDisconnectedLocked()
		return fmt.Errorf("%w: set activity: %w", ErrConnection, err)
	}
	m.log.Debug("activity updated", "state", fields.State, "details", fields.Details)
	return nil
}

// markDisconnectedLocked downgrades a live link. Created and Closed stay put.
func (m *Manager) markDisconnectedLocked() {
	if m.state == StateConnected {
		m.state = StateDisconnected
	}
}

// buildActivity maps resolved fields onto the wire payload. Empty fields
// are omitted, and assets are dropped entirely when none are set.
func (m *Manager) buildActivity(f activity.Fields, repoURL string) *discord.Activity {
	a := &discord.Activity{
		State:      f.State,
		Details:    f.Details,
		Timestamps: &discord.Timestamps{Start: m.startedAt},
	}
	assets := discord.Assets{
		LargeImage: f.LargeImage,
		LargeText:  f.LargeText,
		SmallImage: f.SmallImage,
		SmallText:  f.SmallText,
	}
	if assets != (discord.Assets{}) {
		a.Assets = &assets
	}
	if repoURL != "" {
		a.Buttons = []discord.Button{{Label: "View Repository", URL: repoURL}}
	}
	return a
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
