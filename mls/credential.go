package mls

import (
	"crypto/ed25519"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// CredentialType distinguishes credential variants. Only basic credentials
// are implemented (spec.md §9 "Identity credential extensibility").
type CredentialType uint8

const credentialTypeBasic CredentialType = 1

// BasicCredential binds an opaque identity string, carried verbatim.
type BasicCredential struct {
	Identity []byte
}

// NewBasicCredential constructs a BasicCredential for identity. An empty
// identity is accepted (spec.md §8 boundary behavior: "Empty identity
// string → accepted").
func NewBasicCredential(identity []byte) BasicCredential {
	return BasicCredential{Identity: append([]byte(nil), identity...)}
}

func (c BasicCredential) marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(credentialTypeBasic))
	tlscodec.WriteOpaque(b, c.Identity)
}

func (c *BasicCredential) unmarshal(s *cryptobyte.String) error {
	var typ uint8
	if !s.ReadUint8(&typ) {
		return ErrMalformed
	}
	if CredentialType(typ) != credentialTypeBasic {
		return ErrMalformed
	}
	var id []byte
	if !tlscodec.ReadOpaque(s, &id) {
		return ErrMalformed
	}
	c.Identity = id
	return nil
}

// SignaturePublicKey is an Ed25519 public key.
type SignaturePublicKey []byte

// SignaturePrivateKey is an Ed25519 private key (seed+public concatenated,
// as returned by crypto/ed25519.GenerateKey).
type SignaturePrivateKey []byte

// Public returns the public half of the key pair.
func (k SignaturePrivateKey) Public() SignaturePublicKey {
	return SignaturePublicKey(ed25519.PrivateKey(k).Public().(ed25519.PublicKey))
}

// CredentialWithKey pairs a credential with the signature public key the
// holder signs with. This is the object every KeyPackage, leaf node, and
// GroupInfo carries to identify a member.
type CredentialWithKey struct {
	Credential   BasicCredential
	SignatureKey SignaturePublicKey
}

func (c CredentialWithKey) marshal(b *cryptobyte.Builder) {
	c.Credential.marshal(b)
	tlscodec.WriteOpaque(b, c.SignatureKey)
}

func (c *CredentialWithKey) unmarshal(s *cryptobyte.String) error {
	if err := c.Credential.unmarshal(s); err != nil {
		return err
	}
	var key []byte
	if !tlscodec.ReadOpaque(s, &key) {
		return ErrMalformed
	}
	c.SignatureKey = key
	return nil
}

// Identity returns the UTF-8 identity string carried by the credential.
func (c CredentialWithKey) Identity() string {
	return string(c.Credential.Identity)
}
