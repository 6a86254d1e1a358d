// Package wire implements Nexo's binary frame protocol: a 4-byte
// length prefix around a small fixed header (engine, command, kind,
// correlation id) followed by a payload encoded with the Encoder/
// Decoder helpers in codec.go. See SPEC_FULL.md §4.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// Engine identifies which engine a frame targets.
type Engine byte

const (
	EngineStore Engine = iota + 1
	EngineQueue
	EngineStream
	EnginePubSub
	EngineAdmin
)

// Kind distinguishes a client request from a broker response or an
// unsolicited push (stream/queue/pubsub delivery).
type Kind byte

const (
	KindRequest Kind = iota
	KindResponse
	KindPush
)

// Status is the first payload byte of a response frame. It only says
// OK or error; on StatusErr the dispatcher follows it with the error's
// taxonomy code and message as two strings.
type Status byte

const (
	StatusOK Status = iota
	StatusErr
)

// maxFrameSize bounds a single frame so a corrupt or malicious length
// prefix cannot make the connection task allocate unbounded memory.
const maxFrameSize = 16 * 1024 * 1024

// Frame is one unit of the wire protocol: a decoded header plus its
// still-encoded payload. Callers use Encoder/Decoder to build/read the
// payload according to the command it carries.
type Frame struct {
	Engine        Engine
	Command       byte
	Kind          Kind
	CorrelationID uint64
	Payload       []byte
}

// ReadFrame reads one length-prefixed frame from r. It returns
// io.EOF only when zero bytes could be read for a new frame; a partial
// frame is reported as io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxFrameSize {
		return nil, errors.InvalidArgument("frame exceeds maximum size", nil)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	if len(body) < 11 {
		return nil, errors.InvalidArgument("frame body shorter than header", nil)
	}

	f := &Frame{
		Engine:        Engine(body[0]),
		Command:       body[1],
		Kind:          Kind(body[2]),
		CorrelationID: binary.BigEndian.Uint64(body[3:11]),
		Payload:       body[11:],
	}
	return f, nil
}

// WriteFrame serializes and writes f to w as a single length-prefixed
// frame.
func WriteFrame(w io.Writer, f *Frame) error {
	body := make([]byte, 11+len(f.Payload))
	body[0] = byte(f.Engine)
	body[1] = f.Command
	body[2] = byte(f.Kind)
	binary.BigEndian.PutUint64(body[3:11], f.CorrelationID)
	copy(body[11:], f.Payload)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
