// Package protocol implements the framed client/server wire protocol: a
// fixed header {type, len} followed by a per-type payload, with file
// descriptors carried out of band via SCM_RIGHTS.
//
// All integers are in the host's native byte order. The transport is a
// local per-user socket and both ends are always the same build, so
// cross-machine or cross-version durability is intentionally not a goal.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Version is the protocol version exchanged in the opening handshake.
const Version = 2

// MsgType identifies a message kind. The values are inherited from the
// wire protocol's history; only the listed kinds are ever sent.
type MsgType uint32

const (
	MsgVersion      MsgType = 12
	MsgCommand      MsgType = 200
	MsgDetach       MsgType = 201
	MsgListSessions MsgType = 202
	MsgDetachKill   MsgType = 203
	MsgExited       MsgType = 205
	MsgResize       MsgType = 209
	MsgGridSave     MsgType = 308
)

// headerSize is the wire size of the frame header: a uint32 type followed
// by a uint64 payload length.
const headerSize = 4 + 8

// maxPayload bounds a frame payload. Anything larger is treated as a
// protocol violation rather than an allocation request.
const maxPayload = 64 << 20

var (
	// ErrShortFrame reports end-of-file in the middle of a frame.
	ErrShortFrame = errors.New("protocol: short frame")
	// ErrFrameTooLarge reports an implausible payload length.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrVersionMismatch reports a failed version handshake.
	ErrVersionMismatch = errors.New("protocol: version mismatch")
)

// WriteMessage writes one framed message. A nil payload writes an empty
// frame (len = 0).
func WriteMessage(w io.Writer, typ MsgType, payload []byte) error {
	var hdr [headerSize]byte
	binary.NativeEndian.PutUint32(hdr[0:4], uint32(typ))
	binary.NativeEndian.PutUint64(hdr[4:12], uint64(len(payload)))
	if err := writeFull(w, hdr[:]); err != nil {
		return err
	}
	return writeFull(w, payload)
}

// ReadMessage reads one framed message. io.EOF is returned only when the
// stream ends exactly on a frame boundary; end-of-file inside a frame is
// ErrShortFrame.
func ReadMessage(r io.Reader) (MsgType, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, ErrShortFrame
		}
		return 0, nil, err
	}
	typ := MsgType(binary.NativeEndian.Uint32(hdr[0:4]))
	length := binary.NativeEndian.Uint64(hdr[4:12])
	if length > maxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	if length == 0 {
		return typ, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, ErrShortFrame
		}
		return 0, nil, err
	}
	return typ, payload, nil
}

// WriteInt writes a bare uint32 with no framing. The version handshake
// reply and the attach-sequence counts use this form.
func WriteInt(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	return writeFull(w, buf[:])
}

// ReadInt reads a bare uint32 written by WriteInt.
func ReadInt(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

// EncodeInt returns the 4-byte native encoding of v, for use as a message
// payload (session ids, pane ids).
func EncodeInt(v uint32) []byte {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, v)
	return buf
}

// DecodeInt decodes a payload produced by EncodeInt.
func DecodeInt(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrShortFrame
	}
	return binary.NativeEndian.Uint32(payload), nil
}

// WriteText writes a length-prefixed, NUL-terminated text reply. The
// session list and kill replies use this form (no frame header).
func WriteText(w io.Writer, s string) error {
	buf := make([]byte, 8+len(s)+1)
	binary.NativeEndian.PutUint64(buf[:8], uint64(len(s)+1))
	copy(buf[8:], s)
	return writeFull(w, buf)
}

// ReadText reads a reply written by WriteText.
func ReadText(r io.Reader) (string, error) {
	var lbuf [8]byte
	if _, err := io.ReadFull(r, lbuf[:]); err != nil {
		return "", err
	}
	length := binary.NativeEndian.Uint64(lbuf[:])
	if length == 0 {
		return "", nil
	}
	if length > maxPayload {
		return "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

// Winsize mirrors the kernel winsize struct carried by MsgResize.
type Winsize struct {
	Rows uint16
	Cols uint16
	X    uint16
	Y    uint16
}

// Encode returns the 8-byte wire form of ws.
func (ws Winsize) Encode() []byte {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint16(buf[0:2], ws.Rows)
	binary.NativeEndian.PutUint16(buf[2:4], ws.Cols)
	binary.NativeEndian.PutUint16(buf[4:6], ws.X)
	binary.NativeEndian.PutUint16(buf[6:8], ws.Y)
	return buf
}

// DecodeWinsize decodes a MsgResize payload.
func DecodeWinsize(payload []byte) (Winsize, error) {
	if len(payload) < 8 {
		return Winsize{}, ErrShortFrame
	}
	return Winsize{
		Rows: binary.NativeEndian.Uint16(payload[0:2]),
		Cols: binary.NativeEndian.Uint16(payload[2:4]),
		X:    binary.NativeEndian.Uint16(payload[4:6]),
		Y:    binary.NativeEndian.Uint16(payload[6:8]),
	}, nil
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
