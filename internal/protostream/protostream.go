// Package protostream implements reading and writing of length-prefixed protobuf messages to data streams.
package protostream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/proto"
)

// MaxMessageSize is the largest message a Reader accepts.
const MaxMessageSize = 64 << 20

// ErrTooLarge is returned by Read when the length prefix exceeds MaxMessageSize.
var ErrTooLarge = errors.New("protostream: message length exceeds limit")

// Writer writes protobuf messages to an io.Writer.
type Writer struct {
	mut       sync.Mutex
	dest      io.Writer
	marshaler proto.MarshalOptions
}

// NewWriter returns a new Writer. dest is the io.Writer that the Writer should write to (the stream).
func NewWriter(dest io.Writer) *Writer {
	return &Writer{
		dest:      dest,
		marshaler: proto.MarshalOptions{Deterministic: true},
	}
}

// Write writes a proto message to the stream.
// The length prefix and the message are written with a single call to the underlying writer.
func (w *Writer) Write(msg proto.Message) error {
	size := w.marshaler.Size(msg)
	buf := make([]byte, 4, 4+size)
	binary.LittleEndian.PutUint32(buf, uint32(size))
	buf, err := w.marshaler.MarshalAppend(buf, msg)
	if err != nil {
		return fmt.Errorf("protostream: failed to marshal message: %w", err)
	}

	w.mut.Lock()
	defer w.mut.Unlock()

	if _, err = w.dest.Write(buf); err != nil {
		return fmt.Errorf("protostream: failed to write message: %w", err)
	}
	return nil
}

// Reader reads protobuf messages from an io.Reader.
type Reader struct {
	mut         sync.Mutex
	src         io.Reader
	unmarshaler proto.UnmarshalOptions
}

// NewReader returns a new Reader. src is the io.Reader that the Reader should read messages from.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:         src,
		unmarshaler: proto.UnmarshalOptions{},
	}
}

// Read reads a protobuf message from the stream and unmarshals it into the dst message.
// At the end of the stream it returns an error wrapping io.EOF. A message that was cut
// short returns an error wrapping io.ErrUnexpectedEOF.
func (r *Reader) Read(dst proto.Message) error {
	r.mut.Lock()
	defer r.mut.Unlock()

	var msgLenBuf [4]byte
	_, err := io.ReadFull(r.src, msgLenBuf[:])
	if err != nil {
		return fmt.Errorf("protostream: failed to read message length: %w", err)
	}

	msgLen := binary.LittleEndian.Uint32(msgLenBuf[:])
	if msgLen > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, msgLen)
	}

	buf := make([]byte, msgLen)
	_, err = io.ReadFull(r.src, buf)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return fmt.Errorf("protostream: failed to read message: %w", err)
	}

	err = r.unmarshaler.Unmarshal(buf, dst)
	if err != nil {
		return fmt.Errorf("protostream: failed to unmarshal message: %w", err)
	}

	return nil
}
