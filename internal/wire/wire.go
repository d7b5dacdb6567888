// Package wire implements spec.md §2's WireCodec: TLS-encoded serialize and
// deserialize for KeyPackage, Welcome, GroupInfo (verifiable form), and the
// MlsMessage framing (public vs. private variants), plus the peek that
// tags an opaque blob by wire format without consuming it. Grounded on
// mls/*.go's Marshal*/Unmarshal* package-level helpers, which already do
// the TLS encode/decode work via internal/tlscodec — this package adds
// only the disambiguation order spec.md §4.2 specifies for peek_wire.
package wire

import "github.com/takoserver/mlsengine/mls"

// Kind tags an opaque blob's wire format, spec.md §4.2 peek_wire's result.
type Kind string

const (
	Unknown        Kind = "Unknown"
	KeyPackage     Kind = "KeyPackage"
	Welcome        Kind = "Welcome"
	GroupInfo      Kind = "GroupInfo"
	PublicMessage  Kind = "PublicMessage"
	PrivateMessage Kind = "PrivateMessage"
)

// Peek classifies data by trying MlsMessage first (which disambiguates
// Public vs Private without ambiguity, since WireFormat is the first byte
// of that encoding), then KeyPackage, then Welcome, then GroupInfo. The
// first successful full-consumption decode wins; Peek never mutates any
// group state (it doesn't touch the registry at all).
func Peek(data []byte) Kind {
	if msg, err := mls.UnmarshalMlsMessage(data); err == nil {
		if msg.WireFormat == mls.WireFormatPrivateMessage {
			return PrivateMessage
		}
		return PublicMessage
	}
	if _, err := mls.UnmarshalKeyPackage(data); err == nil {
		return KeyPackage
	}
	if _, err := mls.UnmarshalWelcome(data); err == nil {
		return Welcome
	}
	if _, err := mls.UnmarshalGroupInfo(data); err == nil {
		return GroupInfo
	}
	return Unknown
}

// DecodeKeyPackage parses a TLS-encoded KeyPackage.
func DecodeKeyPackage(data []byte) (mls.KeyPackage, error) {
	return mls.UnmarshalKeyPackage(data)
}

// DecodeWelcome parses a TLS-encoded Welcome without verifying it.
func DecodeWelcome(data []byte) (mls.Welcome, error) {
	return mls.UnmarshalWelcome(data)
}

// DecodeGroupInfo parses a TLS-encoded GroupInfo without verifying it.
func DecodeGroupInfo(data []byte) (mls.GroupInfo, error) {
	return mls.UnmarshalGroupInfo(data)
}

// DecodeMessage parses a TLS-encoded MlsMessage (either wire format).
func DecodeMessage(data []byte) (mls.MlsMessage, error) {
	return mls.UnmarshalMlsMessage(data)
}

// EncodeKeyPackage serializes kp to its TLS presentation encoding.
func EncodeKeyPackage(kp mls.KeyPackage) ([]byte, error) {
	return mls.MarshalKeyPackage(kp)
}

// EncodeWelcome serializes w to its TLS presentation encoding.
func EncodeWelcome(w mls.Welcome) ([]byte, error) {
	return mls.MarshalWelcome(w)
}

// EncodeGroupInfo serializes gi to its TLS presentation encoding.
func EncodeGroupInfo(gi mls.GroupInfo) ([]byte, error) {
	return mls.MarshalGroupInfo(gi)
}

// EncodeMessage serializes m to its TLS presentation encoding.
func EncodeMessage(m mls.MlsMessage) ([]byte, error) {
	return mls.MarshalMlsMessage(m)
}
