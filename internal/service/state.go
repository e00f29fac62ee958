// Package service coordinates the presence: it owns the shared state cells
// and drives the resolver, idle scheduler, and connection manager for each
// editor event.
//
// Each [AppState] cell has its own lock. When more than one is needed they
// are taken in the order workspace, git, configuration, connection, and
// only long enough to copy values out. No cell lock is held across
// Discord I/O.
package service

import (
	"path/filepath"
	"sync"

	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/connection"
	"tools.zach/dev/lspcord/internal/document"
	"tools.zach/dev/lspcord/internal/idle"
)

// Workspace identifies the folder the editor opened.
type Workspace struct {
	Path string
	Name string
}

// NewWorkspace derives the display name from the folder's last element.
func NewWorkspace(path string) Workspace {
	if path == "" {
		return Workspace{}
	}
	return Workspace{Path: path, Name: filepath.Base(filepath.Clean(path))}
}

// AppState is the single holder of shared mutable state. Pass it by
// pointer; never copy it.
type AppState struct {
	workspaceMu sync.RWMutex
	workspace   Workspace

	remoteMu  sync.RWMutex
	remoteURL string

	branchMu sync.RWMutex
	branch   string

	configMu sync.RWMutex
	config   *config.Configuration

	// conn serializes its own I/O.
	conn *connection.Manager

	docMu   sync.Mutex
	lastDoc *document.Snapshot
}

// NewAppState returns state holding the default configuration.
func NewAppState(conn *connection.Manager) *AppState {
	return &AppState{config: config.Default(), conn: conn}
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// Workspace returns the current workspace.
func (s *AppState) Workspace() Workspace {
	s.workspaceMu.RLock()
	defer s.workspaceMu.RUnlock()
	return s.workspace
}

// SetWorkspace records the workspace folder.
func (s *AppState) SetWorkspace(w Workspace) {
	s.workspaceMu.Lock()
	s.workspace = w
	s.workspaceMu.Unlock()
}

// GitRemoteURL returns the browsable remote URL, or "".
func (s *AppState) GitRemoteURL() string {
	s.remoteMu.RLock()
	defer s.remoteMu.RUnlock()
	return s.remoteURL
}

// SetGitRemoteURL records the remote URL.
func (s *AppState) SetGitRemoteURL(url string) {
	s.remoteMu.Lock()
	s.remoteURL = url
	s.remoteMu.Unlock()
}

// GitBranch returns the current branch, or "".
func (s *AppState) GitBranch() string {
	s.branchMu.RLock()
	defer s.branchMu.RUnlock()
	return s.branch
}

// SetGitBranch records the current branch.
func (s *AppState) SetGitBranch(branch string) {
	s.branchMu.Lock()
	s.branch = branch
	s.branchMu.Unlock()
}

// Config returns the configuration. The value is shared and must be
// treated as read-only.
func (s *AppState) Config() *config.Configuration {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// SetConfig installs the configuration built during initialize.
func (s *AppState) SetConfig(cfg *config.Configuration) {
	s.configMu.Lock()
	s.config = cfg
	s.configMu.Unlock()
}

// Connection returns the connection manager.
func (s *AppState) Connection() *connection.Manager { return s.conn }

// Presenter returns the connection manager as used by the idle timer.
func (s *AppState) Presenter() idle.Presenter { return s.conn }

// LastDocument returns a copy of the most recent document, or nil.
func (s *AppState) LastDocument() *document.Snapshot {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	if s.lastDoc == nil {
		return nil
	}
	d := *s.lastDoc
	return &d
}

// SetLastDocument stores a copy of doc; nil clears the cell.
func (s *AppState) SetLastDocument(doc *document.Snapshot) {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	if doc == nil {
		s.lastDoc = nil
		return
	}
	d := *doc
	s.lastDoc = &d
}

// inputs is what one resolution needs, copied out of the cells.
type inputs struct {
	workspace Workspace
	remoteURL string
	branch    string
	config    *config.Configuration
}

// snapshot copies the resolver inputs, taking each lock in the global
// order and releasing it before the next.
func (s *AppState) snapshot() inputs {
	var in inputs
	in.workspace = s.Workspace()
	in.remoteURL = s.GitRemoteURL()
	in.branch = s.GitBranch()
	in.config = s.Config()
	return in
}
