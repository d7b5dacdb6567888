package mls

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// ContentType tags the payload carried by a FramedContent. Exported so
// internal/engine and cmd/mlsctl can dispatch on it without reaching into
// package-private fields.
type ContentType uint8

const (
	// ContentApplication marks an encrypted application payload.
	ContentApplication ContentType = iota + 1
	// ContentProposal marks a standalone proposal.
	ContentProposal
	// ContentCommit marks a commit.
	ContentCommit
)

// WireFormat tags whether an MlsMessage carries a PublicMessage or a
// PrivateMessage (spec.md glossary).
type WireFormat uint8

const (
	// WireFormatPublicMessage frames proposals and commits in the clear
	// (sender-authenticated, not confidential).
	WireFormatPublicMessage WireFormat = iota + 1
	// WireFormatPrivateMessage frames application messages, AEAD-sealed
	// under the epoch's application secret.
	WireFormatPrivateMessage
)

// framedContent is the sender-authenticated envelope shared by proposals,
// commits, and (pre-encryption) application messages.
type framedContent struct {
	groupID     []byte
	epoch       uint64
	sender      leafIndex
	contentType ContentType

	proposal *proposal // set iff contentType == ContentProposal
	commit   *commit   // set iff contentType == ContentCommit
	appData  []byte    // set iff contentType == ContentApplication

	signature []byte
}

func (fc framedContent) tbs() []byte {
	b := cryptobyte.NewBuilder(nil)
	tlscodec.WriteOpaque(b, fc.groupID)
	b.AddUint64(fc.epoch)
	b.AddUint32(uint32(fc.sender))
	b.AddUint8(uint8(fc.contentType))
	switch fc.contentType {
	case ContentProposal:
		fc.proposal.marshal(b)
	case ContentCommit:
		fc.commit.marshal(b)
	case ContentApplication:
		tlscodec.WriteOpaque(b, fc.appData)
	}
	encoded, _ := b.Bytes()
	return encoded
}

func (fc framedContent) marshalBody(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, fc.groupID)
	b.AddUint64(fc.epoch)
	b.AddUint32(uint32(fc.sender))
	b.AddUint8(uint8(fc.contentType))
	switch fc.contentType {
	case ContentProposal:
		fc.proposal.marshal(b)
	case ContentCommit:
		fc.commit.marshal(b)
	case ContentApplication:
		tlscodec.WriteOpaque(b, fc.appData)
	}
	tlscodec.WriteOpaque(b, fc.signature)
}

func (fc *framedContent) unmarshalBody(s *cryptobyte.String) error {
	var gid []byte
	if !tlscodec.ReadOpaque(s, &gid) {
		return ErrMalformed
	}
	var epoch uint64
	if !s.ReadUint64(&epoch) {
		return ErrMalformed
	}
	var sender uint32
	if !s.ReadUint32(&sender) {
		return ErrMalformed
	}
	var ct uint8
	if !s.ReadUint8(&ct) {
		return ErrMalformed
	}
	fc.groupID = gid
	fc.epoch = epoch
	fc.sender = leafIndex(sender)
	fc.contentType = ContentType(ct)

	switch fc.contentType {
	case ContentProposal:
		p := new(proposal)
		if err := p.unmarshal(s); err != nil {
			return err
		}
		fc.proposal = p
	case ContentCommit:
		c := new(commit)
		if err := c.unmarshal(s); err != nil {
			return err
		}
		fc.commit = c
	case ContentApplication:
		var data []byte
		if !tlscodec.ReadOpaque(s, &data) {
			return ErrMalformed
		}
		fc.appData = data
	default:
		return ErrMalformed
	}

	var sig []byte
	if !tlscodec.ReadOpaque(s, &sig) {
		return ErrMalformed
	}
	fc.signature = sig
	return nil
}

// publicMessage is the PublicMessage wire object: a signed FramedContent
// plus, for commits, a confirmation tag binding the new confirmed
// transcript hash.
type publicMessage struct {
	content         framedContent
	confirmationTag []byte // set iff content.contentType == ContentCommit
}

func (pm publicMessage) Marshal(b *cryptobyte.Builder) {
	pm.content.marshalBody(b)
	tlscodec.WriteOptional(b, pm.confirmationTag != nil)
	if pm.confirmationTag != nil {
		tlscodec.WriteOpaque(b, pm.confirmationTag)
	}
}

func (pm *publicMessage) Unmarshal(s *cryptobyte.String) error {
	var fc framedContent
	if err := fc.unmarshalBody(s); err != nil {
		return err
	}
	pm.content = fc
	var present bool
	if !tlscodec.ReadOptional(s, &present) {
		return ErrMalformed
	}
	if present {
		var tag []byte
		if !tlscodec.ReadOpaque(s, &tag) {
			return ErrMalformed
		}
		pm.confirmationTag = tag
	}
	return nil
}

// privateMessage is the PrivateMessage wire object: an AEAD-sealed
// application payload. The sender leaf and generation travel in the clear
// (as an unencrypted "sender data" header would in RFC 9420) so the
// recipient can locate the matching ratchet state.
type privateMessage struct {
	groupID    []byte
	epoch      uint64
	sender     leafIndex
	generation uint32
	ciphertext []byte
}

func (pm privateMessage) aad() []byte {
	b := cryptobyte.NewBuilder(nil)
	tlscodec.WriteOpaque(b, pm.groupID)
	b.AddUint64(pm.epoch)
	b.AddUint32(uint32(pm.sender))
	b.AddUint32(pm.generation)
	encoded, _ := b.Bytes()
	return encoded
}

func (pm privateMessage) Marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, pm.groupID)
	b.AddUint64(pm.epoch)
	b.AddUint32(uint32(pm.sender))
	b.AddUint32(pm.generation)
	tlscodec.WriteOpaque(b, pm.ciphertext)
}

func (pm *privateMessage) Unmarshal(s *cryptobyte.String) error {
	var gid []byte
	if !tlscodec.ReadOpaque(s, &gid) {
		return ErrMalformed
	}
	var epoch uint64
	if !s.ReadUint64(&epoch) {
		return ErrMalformed
	}
	var sender uint32
	if !s.ReadUint32(&sender) {
		return ErrMalformed
	}
	var generation uint32
	if !s.ReadUint32(&generation) {
		return ErrMalformed
	}
	var ct []byte
	if !tlscodec.ReadOpaque(s, &ct) {
		return ErrMalformed
	}
	pm.groupID = gid
	pm.epoch = epoch
	pm.sender = leafIndex(sender)
	pm.generation = generation
	pm.ciphertext = ct
	return nil
}

// MlsMessage is the outermost framing envelope: a WireFormat tag followed by
// either a PublicMessage or a PrivateMessage body.
type MlsMessage struct {
	WireFormat WireFormat

	public  *publicMessage
	private *privateMessage
}

func (m MlsMessage) Marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(m.WireFormat))
	switch m.WireFormat {
	case WireFormatPublicMessage:
		m.public.Marshal(b)
	case WireFormatPrivateMessage:
		m.private.Marshal(b)
	}
}

func (m *MlsMessage) Unmarshal(s *cryptobyte.String) error {
	var wf uint8
	if !s.ReadUint8(&wf) {
		return ErrMalformed
	}
	m.WireFormat = WireFormat(wf)
	switch m.WireFormat {
	case WireFormatPublicMessage:
		pm := new(publicMessage)
		if err := pm.Unmarshal(s); err != nil {
			return err
		}
		m.public = pm
	case WireFormatPrivateMessage:
		pm := new(privateMessage)
		if err := pm.Unmarshal(s); err != nil {
			return err
		}
		m.private = pm
	default:
		return ErrMalformed
	}
	return nil
}

// MarshalMlsMessage is a package-level helper mirroring MarshalKeyPackage.
func MarshalMlsMessage(m MlsMessage) ([]byte, error) {
	return tlscodec.Encode(m)
}

// UnmarshalMlsMessage parses a TLS-encoded MlsMessage.
func UnmarshalMlsMessage(data []byte) (MlsMessage, error) {
	var m MlsMessage
	if err := tlscodec.Decode(data, &m); err != nil {
		return MlsMessage{}, err
	}
	return m, nil
}

// Epoch returns the epoch carried by the message, for either wire format.
func (m MlsMessage) Epoch() uint64 {
	if m.public != nil {
		return m.public.content.epoch
	}
	if m.private != nil {
		return m.private.epoch
	}
	return 0
}

// ContentType returns the content kind for a PublicMessage, or
// ContentApplication for a PrivateMessage.
func (m MlsMessage) ContentType() ContentType {
	if m.public != nil {
		return m.public.content.contentType
	}
	return ContentApplication
}
