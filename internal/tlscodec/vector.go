// Package tlscodec provides the TLS presentation-language vector helpers
// shared by every wire struct in package mls. The opaque/vector shapes and
// the builder/string split are lifted from matjam-go-mls's group_state.go
// and generalized so every MLS struct (not just the persisted group state)
// can reuse them.
package tlscodec

import (
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// WriteOpaque writes a uint32-length-prefixed byte string.
func WriteOpaque(b *cryptobyte.Builder, data []byte) {
	b.AddUint32(uint32(len(data)))
	b.AddBytes(data)
}

// ReadOpaque reads a uint32-length-prefixed byte string.
func ReadOpaque(s *cryptobyte.String, out *[]byte) bool {
	var n uint32
	if !s.ReadUint32(&n) {
		return false
	}
	var data []byte
	if !s.ReadBytes(&data, int(n)) {
		return false
	}
	*out = data
	return true
}

// WriteString writes a uint32-length-prefixed UTF-8 string.
func WriteString(b *cryptobyte.Builder, s string) {
	WriteOpaque(b, []byte(s))
}

// ReadString reads a uint32-length-prefixed UTF-8 string.
func ReadString(s *cryptobyte.String, out *string) bool {
	var data []byte
	if !ReadOpaque(s, &data) {
		return false
	}
	*out = string(data)
	return true
}

// WriteVector writes a uint32 element count followed by n calls to write.
func WriteVector(b *cryptobyte.Builder, n int, write func(b *cryptobyte.Builder, i int)) {
	b.AddUint32(uint32(n))
	for i := 0; i < n; i++ {
		write(b, i)
	}
}

// ReadVector reads a uint32 element count and invokes read that many times.
func ReadVector(s *cryptobyte.String, read func(s *cryptobyte.String) error) error {
	var n uint32
	if !s.ReadUint32(&n) {
		return io.ErrUnexpectedEOF
	}
	for i := uint32(0); i < n; i++ {
		if err := read(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteOptional writes a single presence byte.
func WriteOptional(b *cryptobyte.Builder, present bool) {
	if present {
		b.AddUint8(1)
	} else {
		b.AddUint8(0)
	}
}

// ReadOptional reads a single presence byte.
func ReadOptional(s *cryptobyte.String, present *bool) bool {
	var v uint8
	if !s.ReadUint8(&v) {
		return false
	}
	*present = v != 0
	return true
}

// Marshaler is implemented by every wire struct in package mls.
type Marshaler interface {
	Marshal(b *cryptobyte.Builder)
}

// Unmarshaler is implemented by every wire struct in package mls.
type Unmarshaler interface {
	Unmarshal(s *cryptobyte.String) error
}

// Encode builds the TLS presentation encoding of m.
func Encode(m Marshaler) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	m.Marshal(b)
	return b.Bytes()
}

// Decode parses the TLS presentation encoding of data into m, requiring the
// entire input to be consumed.
func Decode(data []byte, m Unmarshaler) error {
	s := cryptobyte.String(data)
	if err := m.Unmarshal(&s); err != nil {
		return err
	}
	if !s.Empty() {
		return io.ErrUnexpectedEOF
	}
	return nil
}
