// Socket discovery for Windows, where Discord exposes named pipes.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeTimeout bounds a single pipe probe.
var pipeTimeout = 500 * time.Millisecond

// dialDiscord returns the first \\.\pipe\discord-ipc-N that accepts a connection.
func dialDiscord() (net.Conn, error) {
	for i := range ipcSlots {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &pipeTimeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
