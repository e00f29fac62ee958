// Package main is the lspcord language server. Editors launch it over stdio;
// it mirrors the active file into Discord Rich Presence.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	rootpkg "tools.zach/dev/lspcord"
	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/connection"
	"tools.zach/dev/lspcord/internal/logger"
	"tools.zach/dev/lspcord/internal/lsp"
	"tools.zach/dev/lspcord/internal/paths"
	"tools.zach/dev/lspcord/internal/service"
	"tools.zach/dev/lspcord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time with -ldflags "-X main.version=1.2.3".
var version = "dev"

// resolveVersion returns [version], or "dev+<hash>" from the embedded VCS
// info for untagged builds.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	v := "dev+" + revision[:min(7, len(revision))]
	if dirty {
		v += ".dirty"
	}
	return v
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run wires settings, logging and the LSP server, then serves until the
// editor exits or a signal arrives. It returns the process exit code.
func run(args []string, stdin io.ReadCloser, stdout io.WriteCloser, stderr io.Writer) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory for settings and logs")
	// Accepted so editors that pass --stdio still parse; stdio is the only transport.
	fs.Bool("stdio", true, "Serve the language server protocol on stdin/stdout (always on)")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ver := resolveVersion()
	if *showVersion {
		fmt.Fprintln(stdout, paths.BinaryName, ver)
		return 0
	}

	dir := DataPaths{Root: *dataDir}
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		fmt.Fprintf(stderr, "fatal: create data dir: %v\n", err)
		return 1
	}
	if _, err := config.SeedSettings(dir, rootpkg.DefaultSettingsTOML); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	settings, err := config.LoadSettings(dir)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	logOpts := logger.Options{
		Level:     settings.Log.Level,
		Output:    settings.Log.Output,
		Path:      dir.Log(),
		MaxSizeMB: settings.Log.MaxSizeMB,
		Stderr:    stderr,
	}
	logOpts.ApplyEnv(os.Getenv)
	log, logCloser, err := logger.New(logOpts)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)
	log.Info("lspcord starting", "version", ver, "data_dir", dir.Root, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case sig := <-signalChannel():
			log.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if settings.Update.Check {
		go update.NewChecker().Run(ctx, ver, log.With("component", "update"))
	}

	conn := connection.NewManager(connection.WithLogger(log.With("component", "discord")))
	svc := service.NewPresenceService(service.NewAppState(conn), log.With("component", "presence"))
	srv := lsp.NewServer(svc,
		lsp.WithLogger(log.With("component", "lsp")),
		lsp.WithVersion(ver),
		lsp.WithWatchHead(settings.Git.WatchHead),
		lsp.WithExit(func(code int) {
			logCloser.Close()
			os.Exit(code)
		}),
	)

	if err := srv.Serve(ctx, newStdio(stdin, stdout)); err != nil {
		logger.Fail(log, "language server stopped", "error", err)
		return 1
	}
	log.Info("lspcord stopped")
	return 0
}
