package discord

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode identifies the kind of an IPC frame.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4

	// headerSize is the 4-byte LE opcode plus the 4-byte LE payload length.
	headerSize = 8

	// MaxPayloadSize caps a single frame body at 64 KiB. Presence payloads
	// are a few hundred bytes; anything larger is a corrupt stream.
	MaxPayloadSize = 64 << 10

	// ipcSlots is how many numbered sockets (discord-ipc-0..9) are probed.
	ipcSlots = 10
)

var (
	// ErrPayloadTooLarge is returned for frames exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("ipc payload too large")
	// ErrIPCNotAvailable is returned when no Discord socket accepts a connection.
	ErrIPCNotAvailable = errors.New("discord IPC not available")
)

// Frame is one decoded IPC message.
type Frame struct {
	Op   Opcode
	Data []byte
}

// ///////////////////////////////////////////////
// Encoding
// ///////////////////////////////////////////////

// AppendFrame appends the wire form of (op, payload) to dst.
func AppendFrame(dst []byte, op Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(op))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// WriteFrame marshals v as JSON and writes it as a single frame.
func WriteFrame(w io.Writer, op Opcode, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %d frame: %w", op, err)
	}
	buf, err := AppendFrame(make([]byte, 0, headerSize+len(payload)), op, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %d frame: %w", op, err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Decoding
// ///////////////////////////////////////////////

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	op := Opcode(binary.LittleEndian.Uint32(hdr[:4]))
	n := binary.LittleEndian.Uint32(hdr[4:])
	if n > MaxPayloadSize {
		return Frame{}, fmt.Errorf("%w: header claims %d bytes", ErrPayloadTooLarge, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}
	return Frame{Op: op, Data: data}, nil
}
