// Package transport implements the frame-level contract described in
// spec.md §4.A: send or receive one typed message plus an optional
// bounded attachment on a connected socket. It is deliberately codec
// agnostic — the typed-message bytes are opaque here, encoded/decoded
// by a protocol/codec.Codec chosen by the caller.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/objcache/cachemgr/protocol"
)

// Error taxonomy of the frame transport, per spec.md §4.A. Recv wraps
// I/O failures in ErrReceiveFailed and reports an oversized attachment
// as ErrTooLarge; nothing in this package returns ErrMalformed.
var (
	ErrReceiveFailed = errors.New("transport: receive failed")
	ErrMalformed     = errors.New("transport: malformed frame")
	ErrTooLarge      = errors.New("transport: attachment too large")
)

// SendFlags control how Send behaves on failure or blocking.
type SendFlags uint8

const (
	// IgnoreSendFailure causes Send to swallow I/O errors (used for
	// shutdown/detach notifications where the caller can't act on them).
	IgnoreSendFailure SendFlags = 1 << iota
	// NonBlocking bounds the time Send will wait for the write to
	// complete (used for detach broadcast, so one slow client can't
	// stall notifying the others).
	NonBlocking
)

// Frame is one typed message plus its optional attachment.
type Frame struct {
	Kind       protocol.Kind
	Message    []byte // codec-encoded typed-message bytes
	Attachment []byte
}

// nonBlockingWriteTimeout bounds how long a NonBlocking Send will wait.
const nonBlockingWriteTimeout = 50 * time.Millisecond

// header layout: 1 byte kind, 4 bytes message length, 4 bytes attachment length.
const headerSize = 1 + 4 + 4

// Send writes one frame to conn.
func Send(conn net.Conn, frame Frame, flags SendFlags) error {
	header := make([]byte, headerSize)
	header[0] = byte(frame.Kind)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(frame.Message)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(frame.Attachment)))

	if flags&NonBlocking != 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(nonBlockingWriteTimeout)); err != nil {
			if flags&IgnoreSendFailure != 0 {
				return nil
			}
			return err
		}
		defer conn.SetWriteDeadline(time.Time{})
	}

	bufs := net.Buffers{header, frame.Message, frame.Attachment}
	_, err := bufs.WriteTo(conn)
	if err != nil && flags&IgnoreSendFailure != 0 {
		return nil
	}
	return err
}

// Recv reads one frame from conn. attachmentBuf, if non-nil, is reused
// as scratch space for the attachment when it fits; otherwise a new
// buffer is allocated. maxAttachment bounds the accepted attachment
// size — an oversized attachment is rejected with ErrTooLarge rather
// than exhausting memory on a misbehaving or hostile peer.
func Recv(conn net.Conn, maxAttachment uint32, attachmentBuf []byte) (Frame, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}
	kind := protocol.Kind(header[0])
	msgLen := binary.BigEndian.Uint32(header[1:5])
	attLen := binary.BigEndian.Uint32(header[5:9])

	if attLen > maxAttachment {
		// Drain and discard so the connection isn't left desynchronized
		// mid-frame, then report the oversize as ErrTooLarge.
		if _, err := io.CopyN(io.Discard, conn, int64(msgLen)+int64(attLen)); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
		}
		return Frame{}, ErrTooLarge
	}

	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}

	var att []byte
	if attLen > 0 {
		if uint32(len(attachmentBuf)) >= attLen {
			att = attachmentBuf[:attLen]
		} else {
			att = make([]byte, attLen)
		}
		if _, err := io.ReadFull(conn, att); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
		}
	}

	return Frame{Kind: kind, Message: msg, Attachment: att}, nil
}
