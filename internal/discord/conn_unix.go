// Socket discovery for Unix-like systems. Discord listens on
// discord-ipc-<n> inside the user's runtime directory; packaged builds
// (Snap, Flatpak) and the Canary/PTB channels move it elsewhere.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// dialTimeout bounds a single socket probe.
const dialTimeout = 500 * time.Millisecond

// socketDirs returns candidate directories in probe order, skipping
// empty entries and duplicates.
func socketDirs() []string {
	uid := strconv.Itoa(os.Getuid())
	runUser := filepath.Join("/run/user", uid)

	candidates := []string{
		os.Getenv("XDG_RUNTIME_DIR"),
		os.Getenv("TMPDIR"),
		os.Getenv("TMP"),
		os.Getenv("TEMP"),
		"/tmp",
	}
	for _, sub := range []string{
		"snap.discord",
		"snap.discord-canary",
		"snap.discord-ptb",
		"app/com.discordapp.Discord",
		"app/com.discordapp.DiscordCanary",
		"app/com.discordapp.DiscordPTB",
		"app/dev.vencord.Vesktop/vesktop",
	} {
		candidates = append(candidates, filepath.Join(runUser, sub))
	}
	candidates = append(candidates, wslSocketDirs()...)

	seen := make(map[string]bool, len(candidates))
	dirs := candidates[:0]
	for _, d := range candidates {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	return dirs
}

// dialDiscord returns the first socket that accepts a connection.
func dialDiscord() (net.Conn, error) {
	for _, dir := range socketDirs() {
		for i := range ipcSlots {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			conn, err := net.DialTimeout("unix", path, dialTimeout)
			if err == nil {
				return conn, nil
			}
		}
	}
	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay to /tmp/discord-ipc-0 is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}
