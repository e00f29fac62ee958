package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"tools.zach/dev/lspcord/internal/activity"
	"tools.zach/dev/lspcord/internal/document"
	"tools.zach/dev/lspcord/internal/idle"
)

// PresenceService turns editor events into presence updates.
type PresenceService struct {
	state *AppState
	idle  *idle.Scheduler
	log   *slog.Logger

	// seq numbers updates so that one overtaken by a newer event is not
	// sent after it.
	seq atomic.Uint64

	shutdownOnce sync.Once
}

// NewPresenceService wires a service to state.
func NewPresenceService(state *AppState, log *slog.Logger) *PresenceService {
	return &PresenceService{
		state: state,
		idle:  idle.New(log.With("component", "idle")),
		log:   log,
	}
}

// State returns the shared state the service operates on.
func (s *PresenceService) State() *AppState { return s.state }

// Initialize creates the Discord client for appID and makes one connection
// attempt. Failures are returned to the caller.
func (s *PresenceService) Initialize(ctx context.Context, appID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := s.state.Connection()
	if err := conn.Create(appID); err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	return nil
}

// UpdatePresence publishes the presence for doc, or for no document when
// doc is nil. A document also restarts the idle window.
func (s *PresenceService) UpdatePresence(ctx context.Context, doc *document.Snapshot) error {
	seq := s.seq.Add(1)
	s.state.SetLastDocument(doc)

	if doc != nil {
		s.idle.Reset(s.state, s.state.Workspace().Name)
	}

	in := s.state.snapshot()
	fields := activity.Resolve(doc, in.config, in.workspace.Name, in.branch)

	var repoURL string
	if in.config.GitIntegration {
		repoURL = in.remoteURL
	}

	if s.seq.Load() != seq {
		s.log.Debug("skipping superseded presence update", "seq", seq)
		return nil
	}
	if err := s.state.Connection().ChangeActivityWithReconnect(ctx, fields, repoURL); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// Shutdown stops the idle timer and closes the Discord connection. It
// always completes; errors are logged. Later calls do nothing.
func (s *PresenceService) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.idle.Stop()
		if err := s.state.Connection().Kill(); err != nil {
			s.log.Warn("closing discord connection failed", "error", err)
			return
		}
		s.log.Info("presence service shut down")
	})
}

// IdleFired reports how many idle presentations have been emitted.
func (s *PresenceService) IdleFired() uint64 { return s.idle.Fired() }
