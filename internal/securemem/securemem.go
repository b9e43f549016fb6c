// Package securemem keeps credentials in guarded memory while they are in
// flight: a password travels from the wire or the terminal into a [Secret]
// and is only exposed as plaintext inside [Secret.WithBytes].
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// Secret is a locked, read-only buffer. The zero value and a destroyed
// Secret both behave as empty.
type Secret struct {
	buf *memguard.LockedBuffer
}

// FromBytes moves data into a Secret. data is wiped.
func FromBytes(data []byte) *Secret {
	if len(data) == 0 {
		return &Secret{}
	}
	buf := memguard.NewBufferFromBytes(data)
	buf.Freeze()
	return &Secret{buf: buf}
}

// FromString copies s into a Secret. The string itself cannot be wiped.
func FromString(s string) *Secret {
	return FromBytes([]byte(s))
}

func (s *Secret) alive() bool {
	return s != nil && s.buf != nil && s.buf.IsAlive()
}

// Len returns the plaintext length
func (s *Secret) Len() int {
	if !s.alive() {
		return 0
	}
	return s.buf.Size()
}

// IsEmpty reports whether the secret holds no bytes
func (s *Secret) IsEmpty() bool {
	return s.Len() == 0
}

// WithBytes calls fn with a plaintext copy that is wiped when fn returns.
// fn must not retain the slice.
func (s *Secret) WithBytes(fn func([]byte)) {
	if !s.alive() {
		fn(nil)
		return
	}
	b := make([]byte, s.buf.Size())
	copy(b, s.buf.Bytes())
	defer memguard.WipeBytes(b)
	fn(b)
}

// Equal compares against plaintext in constant time
func (s *Secret) Equal(other []byte) bool {
	if !s.alive() {
		return len(other) == 0
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), other) == 1
}

// Destroy wipes and releases the buffer. It is safe to call twice.
func (s *Secret) Destroy() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Destroy()
	s.buf = nil
}

// String never reveals the contents
func (s *Secret) String() string {
	return "[secret]"
}
