// WSL support. Under WSL2 Discord runs on the Windows side and its named
// pipe is only reachable through a relay such as:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"
//
// The relay socket usually lands in /tmp, which is already probed; WSLg
// additionally mounts a runtime directory under /mnt/wslg.

//go:build linux

package discord

import (
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	wslOnce sync.Once
	wsl     bool
)

// isWSL reports whether the kernel release identifies a WSL kernel.
func isWSL() bool {
	wslOnce.Do(func() {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err != nil {
			return
		}
		release := strings.ToLower(unix.ByteSliceToString(uts.Release[:]))
		wsl = strings.Contains(release, "microsoft") || strings.Contains(release, "wsl")
	})
	return wsl
}

// wslSocketDirs returns extra relay directories when running under WSL.
func wslSocketDirs() []string {
	if !isWSL() {
		return nil
	}
	return []string{"/mnt/wslg/runtime-dir"}
}
