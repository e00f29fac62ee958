// Package lsp is the editor-facing side of lspcord. It answers the language
// server lifecycle requests and turns text document notifications into
// presence updates.
//
// The server advertises no language features. Editors start it like any other
// language server, and it only listens.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"go.lsp.dev/jsonrpc2"

	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/document"
	"tools.zach/dev/lspcord/internal/gitinfo"
	"tools.zach/dev/lspcord/internal/logger"
	"tools.zach/dev/lspcord/internal/service"
)

// ServerName is reported in the initialize result.
const ServerName = "lspcord"

// eventQueueSize bounds the document events waiting for the worker.
const eventQueueSize = 64

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithWatchHead enables live branch tracking through [gitinfo.WatchHead].
func WithWatchHead(on bool) Option {
	return func(s *Server) { s.watchHead = on }
}

// WithExit replaces the function called when the workspace is rejected by
// the configured rules. The default is [os.Exit].
func WithExit(exit func(code int)) Option {
	return func(s *Server) { s.exit = exit }
}

// ///////////////////////////////////////////////
// Server
// ///////////////////////////////////////////////

// event is one document notification waiting to become a presence update.
type event struct {
	uri  string
	line *uint32
}

// Server adapts a JSON-RPC connection to a [service.PresenceService].
type Server struct {
	svc       *service.PresenceService
	log       *slog.Logger
	version   string
	watchHead bool
	exit      func(code int)

	conn   jsonrpc2.Conn
	events chan event

	initialized atomic.Bool
	stopped     atomic.Bool
	exited      atomic.Bool

	watcherMu sync.Mutex
	watcher   *gitinfo.HeadWatcher
}

// NewServer returns a server that drives svc.
func NewServer(svc *service.PresenceService, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		log:    slog.Default(),
		exit:   os.Exit,
		events: make(chan event, eventQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve runs the protocol over rwc until the client sends exit, the stream
// ends, or ctx is cancelled. The presence service is shut down before Serve
// returns.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()

	s.conn.Go(ctx, s.handle)

	select {
	case <-s.conn.Done():
	case <-ctx.Done():
		s.conn.Close()
		<-s.conn.Done()
	}
	cancel()
	wg.Wait()
	s.stop()

	if s.exited.Load() || ctx.Err() != nil {
		return nil
	}
	if err := s.conn.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("lsp connection: %w", err)
	}
	return nil
}

// stop ends presence publishing. Safe to call more than once.
func (s *Server) stop() {
	s.stopped.Store(true)
	s.watcherMu.Lock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	s.watcherMu.Unlock()
	s.svc.Shutdown()
}

// ///////////////////////////////////////////////
// Dispatch
// ///////////////////////////////////////////////

// handle runs on the connection's read loop. Anything slow is handed to the
// worker so that later messages are not held up.
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	logger.Trace(s.log, "message received", "method", req.Method())
	switch req.Method() {
	case methodInitialize:
		return s.initialize(ctx, reply, req)

	case methodInitialized:
		if err := s.conn.Notify(ctx, methodLogMessage, logMessageParams{
			Type:    messageInfo,
			Message: ServerName + " initialized",
		}); err != nil {
			s.log.Debug("log message notification failed", "error", err)
		}
		return reply(ctx, nil, nil)

	case methodDidOpen:
		var p didOpenParams
		if err := decode(req, &p); err != nil {
			return s.badNotification(ctx, reply, req, err)
		}
		s.enqueue(ctx, event{uri: p.TextDocument.URI})
		return reply(ctx, nil, nil)

	case methodDidChange:
		var p didChangeParams
		if err := decode(req, &p); err != nil {
			return s.badNotification(ctx, reply, req, err)
		}
		ev := event{uri: p.TextDocument.URI}
		if len(p.ContentChanges) > 0 && p.ContentChanges[0].Range != nil {
			line := p.ContentChanges[0].Range.Start.Line
			ev.line = &line
		}
		s.enqueue(ctx, ev)
		return reply(ctx, nil, nil)

	case methodDidSave:
		var p didSaveParams
		if err := decode(req, &p); err != nil {
			return s.badNotification(ctx, reply, req, err)
		}
		s.enqueue(ctx, event{uri: p.TextDocument.URI})
		return reply(ctx, nil, nil)

	case methodShutdown:
		s.log.Info("shutdown requested")
		s.stop()
		return reply(ctx, nil, nil)

	case methodExit:
		s.exited.Store(true)
		s.stop()
		if err := reply(ctx, nil, nil); err != nil {
			return err
		}
		return s.conn.Close()
	}
	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

func (s *Server) initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if s.initialized.Swap(true) {
		return reply(ctx, nil, fmt.Errorf("%w: already initialized", jsonrpc2.ErrInvalidRequest))
	}

	var p initializeParams
	if err := decode(req, &p); err != nil {
		return reply(ctx, nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err))
	}
	cfg, err := config.Parse(p.InitializationOptions, s.log)
	if err != nil {
		return reply(ctx, nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err))
	}

	root, err := workspaceRoot(p)
	if err != nil {
		s.log.Warn("no usable workspace root", "error", err)
	}
	ws := service.NewWorkspace(root)
	state := s.svc.State()
	state.SetWorkspace(ws)
	state.SetConfig(cfg)

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    syncIncremental,
			},
		},
		ServerInfo: serverInfo{Name: ServerName, Version: s.version},
	}

	if !cfg.Rules.Suitable(ws.Path) {
		s.log.Info("workspace excluded by rules, exiting", "workspace", ws.Path, "mode", cfg.Rules.Mode)
		err := reply(ctx, result, nil)
		s.exit(0)
		return err
	}

	remote, branch := gitinfo.Resolve(ws.Path)
	state.SetGitRemoteURL(remote)
	state.SetGitBranch(branch)
	s.log.Debug("workspace resolved", "workspace", ws.Name, "remote", remote, "branch", branch)

	if s.watchHead && cfg.GitIntegration && ws.Path != "" {
		s.startHeadWatcher(ws.Path)
	}

	if err := s.svc.Initialize(ctx, cfg.ApplicationID); err != nil {
		s.log.Warn("discord connection failed, will retry on next event", "error", err)
	}
	return reply(ctx, result, nil)
}

func (s *Server) startHeadWatcher(root string) {
	state := s.svc.State()
	w, err := gitinfo.WatchHead(root, s.log.With("component", "git"), func(branch string) {
		s.log.Debug("branch changed", "branch", branch)
		state.SetGitBranch(branch)
	})
	if err != nil {
		s.log.Debug("branch watcher not started", "error", err)
		return
	}
	s.watcherMu.Lock()
	s.watcher = w
	s.watcherMu.Unlock()
}

func (s *Server) badNotification(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, err error) error {
	s.log.Debug("ignoring malformed notification", "method", req.Method(), "error", err)
	return reply(ctx, nil, fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err))
}

// ///////////////////////////////////////////////
// Worker
// ///////////////////////////////////////////////

func (s *Server) enqueue(ctx context.Context, ev event) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// work applies document events one at a time, in arrival order.
func (s *Server) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if s.stopped.Load() {
				continue
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *Server) apply(ctx context.Context, ev event) {
	root := s.svc.State().Workspace().Path
	doc, err := document.FromURI(ev.uri, root)
	if err != nil {
		s.log.Debug("ignoring document event", "uri", ev.uri, "error", err)
		return
	}
	if ev.line != nil {
		doc = doc.WithLine(*ev.line)
	}
	if err := s.svc.UpdatePresence(ctx, &doc); err != nil {
		s.log.Warn("presence update failed", "path", doc.Path(), "error", err)
	}
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

var errNoWorkspace = errors.New("client sent no root uri, root path or workspace folder")

// workspaceRoot picks the workspace directory from rootUri, then the first
// workspace folder, then the deprecated rootPath.
func workspaceRoot(p initializeParams) (string, error) {
	switch {
	case p.RootURI != "":
		return uriPath(p.RootURI)
	case len(p.WorkspaceFolders) > 0:
		return uriPath(p.WorkspaceFolders[0].URI)
	case p.RootPath != "":
		return p.RootPath, nil
	}
	return "", errNoWorkspace
}

func uriPath(raw string) (string, error) {
	doc, err := document.FromURI(raw, "")
	if err != nil {
		return "", err
	}
	return doc.Path(), nil
}

func decode(req jsonrpc2.Request, v any) error {
	params := req.Params()
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, v)
}
