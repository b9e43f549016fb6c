package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
)

// ErrProtocol is matched by every *ProtocolError
var ErrProtocol = errors.New("protocol error")

// ProtocolError reports malformed input. It is fatal to the connection.
type ProtocolError struct {
	Command Command
	Reason  string
	Err     error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error"
	if e.Command != 0 {
		msg += " in " + e.Command.String()
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProtocol, e.Err}
	}
	return []error{ErrProtocol}
}

// Is lets errors.Is(err, ErrProtocol) match without an Unwrap walk
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// Encode writes the tag and payload of e to w. The caller owns buffering.
func Encode(w io.Writer, e Event) error {
	pw := NewWriter(w)
	pw.WriteUint32(uint32(e.Command()))
	e.encodePayload(pw)
	return pw.Err()
}

// Decode reads one event from r.
//
// It returns io.EOF when the stream ends cleanly before a tag, a
// *ProtocolError for an unknown tag, a truncated message or invalid payload,
// and the underlying error unchanged for transport failures such as timeouts.
func Decode(r io.Reader) (Event, error) {
	tag, err := DecodeTag(r)
	if err != nil {
		return nil, err
	}
	return DecodeBody(tag, r)
}

// DecodeTag reads the 4-byte command tag that starts every message. A stream
// that ends before the first byte yields io.EOF.
func DecodeTag(r io.Reader) (Command, error) {
	var tagBuf [4]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, &ProtocolError{Reason: "truncated command tag", Err: err}
		}
		return 0, err
	}
	return Command(binary.LittleEndian.Uint32(tagBuf[:])), nil
}

// DecodeBody reads the payload for an already-read tag.
func DecodeBody(tag Command, r io.Reader) (Event, error) {
	ev, ok := Lookup(tag)
	if !ok {
		return nil, &ProtocolError{Command: tag, Reason: "unknown command tag"}
	}

	pr := NewReader(r)
	ev.decodePayload(pr)
	if err := pr.Err(); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			perr.Command = tag
			return nil, perr
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &ProtocolError{Command: tag, Reason: "stream closed mid-payload", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}
	return ev, nil
}

// Writer encodes payload primitives. The first error sticks; later writes are
// no-ops and Err reports it.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// WriteUint32 writes a little-endian uint32
func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

// WriteInt32 writes a little-endian int32
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteInt64 writes a little-endian int64
func (w *Writer) WriteInt64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

// WriteBool writes one byte
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf[0] = 1
	} else {
		w.buf[0] = 0
	}
	w.write(w.buf[:1])
}

// WriteString writes an int32 length followed by the UTF-8 bytes of s
func (w *Writer) WriteString(s string) {
	if w.err == nil && (len(s) > consts.MaxStringBytes || len(s) > math.MaxInt32) {
		w.err = fmt.Errorf("string of %d bytes exceeds wire limit", len(s))
		return
	}
	w.WriteInt32(int32(len(s)))
	if len(s) > 0 {
		w.write([]byte(s))
	}
}

// WriteNullableString writes a presence byte then the string when s is non-nil
func (w *Writer) WriteNullableString(s *string) {
	w.WriteBool(s != nil)
	if s != nil {
		w.WriteString(*s)
	}
}

// WriteUUID writes the 16 raw bytes of id
func (w *Writer) WriteUUID(id uuid.UUID) {
	w.write(id[:])
}

// Reader decodes payload primitives. The first error sticks; later reads
// return zero values and Err reports it.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.err = err
		return false
	}
	return true
}

// ReadUint32 reads a little-endian uint32
func (r *Reader) ReadUint32() uint32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.buf[:4])
}

// ReadInt32 reads a little-endian int32
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadInt64 reads a little-endian int64
func (r *Reader) ReadInt64() int64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8]))
}

// ReadBool reads one byte; any value other than 0 or 1 is a protocol error
func (r *Reader) ReadBool() bool {
	if !r.read(r.buf[:1]) {
		return false
	}
	switch r.buf[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.err = &ProtocolError{Reason: fmt.Sprintf("invalid bool byte 0x%02X", r.buf[0])}
		return false
	}
}

// ReadString reads a length-prefixed UTF-8 string
func (r *Reader) ReadString() string {
	n := r.ReadInt32()
	if r.err != nil {
		return ""
	}
	if n < 0 || int64(n) > consts.MaxStringBytes {
		r.err = &ProtocolError{Reason: fmt.Sprintf("invalid string length %d", n)}
		return ""
	}
	if n == 0 {
		return ""
	}
	p := make([]byte, n)
	if !r.read(p) {
		return ""
	}
	if !utf8.Valid(p) {
		r.err = &ProtocolError{Reason: "string is not valid UTF-8"}
		return ""
	}
	return string(p)
}

// ReadNullableString reads a presence byte and, when set, a string
func (r *Reader) ReadNullableString() *string {
	if !r.ReadBool() {
		return nil
	}
	s := r.ReadString()
	if r.err != nil {
		return nil
	}
	return &s
}

// ReadUUID reads 16 raw bytes
func (r *Reader) ReadUUID() uuid.UUID {
	var id uuid.UUID
	r.read(id[:])
	return id
}
