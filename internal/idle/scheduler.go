// Package idle switches the presence to its idle form after the editor has
// been quiet for the configured window.
//
// Every editing event calls [Scheduler.Reset], which stops the pending
// timer and installs a new one under the same lock. A generation counter
// guards the timer body, so a replaced timer that was already due cannot
// emit once its replacement is installed.
package idle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/lspcord/internal/activity"
	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/document"
)

// Presenter publishes presence changes.
type Presenter interface {
	ClearActivity() error
	ChangeActivity(fields activity.Fields, repoURL string) error
}

// Source exposes the shared cells the timer reads when it fires. Each call
// must return the value current at call time.
type Source interface {
	Config() *config.Configuration
	LastDocument() *document.Snapshot
	GitRemoteURL() string
	GitBranch() string
	Presenter() Presenter
}

// Scheduler owns at most one pending idle timer. It is safe for concurrent
// use.
type Scheduler struct {
	log *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	// fired counts timer bodies that ran to the presenter call.
	fired uint64
}

// New returns a scheduler with no pending timer.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Reset cancels any pending timer and starts a new one for the timeout
// configured in src.
func (s *Scheduler) Reset(src Source, workspace string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	timeout := src.Config().Idle.Timeout
	s.timer = time.AfterFunc(timeout, func() { s.fire(gen, src, workspace) })
}

// Stop cancels the pending timer, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Fired returns how many idle presentations have been emitted.
func (s *Scheduler) Fired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

func (s *Scheduler) fire(gen uint64, src Source, workspace string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.fired++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("idle timer panicked", "panic", fmt.Sprint(r))
		}
	}()

	cfg := src.Config()
	presenter := src.Presenter()
	if presenter == nil {
		return
	}

	switch cfg.Idle.Action {
	case config.IdleClearActivity:
		if err := presenter.ClearActivity(); err != nil {
			s.log.Debug("idle clear failed", "error", err)
			return
		}
		s.log.Info("idle: presence cleared")
	default:
		fields := activity.ResolveIdle(src.LastDocument(), cfg, workspace, src.GitBranch())
		var repoURL string
		if cfg.GitIntegration {
			repoURL = src.GitRemoteURL()
		}
		if err := presenter.ChangeActivity(fields, repoURL); err != nil {
			s.log.Debug("idle update failed", "error", err)
			return
		}
		s.log.Info("idle: presence updated", "state", fields.State)
	}
}
