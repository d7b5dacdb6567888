package mls

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// KeyPackage is a signed advertisement binding a credential, its signature
// public key, and an HPKE init key (spec.md §3 "KeyPackage").
type KeyPackage struct {
	CipherSuite CipherSuite
	InitKey     HPKEPublicKey
	Credential  CredentialWithKey
	Signature   []byte
}

// KeyPackagePrivate bundles a freshly generated KeyPackage with the private
// key material that produced it. spec.md §4.1 documents that
// generate_key_package discards this private half before returning; only
// create_group / join_with_welcome / join_with_group_info retain it (inside
// the resulting GroupHandle's signer, and internally during welcome
// construction).
type KeyPackagePrivate struct {
	Public        KeyPackage
	SignaturePriv SignaturePrivateKey
	InitPriv      HPKEPrivateKey
}

func (kp KeyPackage) tbs() []byte {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint16(uint16(kp.CipherSuite))
	tlscodec.WriteOpaque(b, kp.InitKey)
	kp.Credential.marshal(b)
	encoded, _ := b.Bytes()
	return encoded
}

// Tbs exposes the to-be-signed encoding for callers outside package mls
// (the engine facade) that assemble a KeyPackage around an externally
// minted signer rather than going through GenerateKeyPairPackage.
func (kp KeyPackage) Tbs() []byte { return kp.tbs() }

func (kp KeyPackage) Marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(kp.CipherSuite))
	tlscodec.WriteOpaque(b, kp.InitKey)
	kp.Credential.marshal(b)
	tlscodec.WriteOpaque(b, kp.Signature)
}

func (kp *KeyPackage) Unmarshal(s *cryptobyte.String) error {
	var cs uint16
	if !s.ReadUint16(&cs) {
		return ErrMalformed
	}
	var initKey []byte
	if !tlscodec.ReadOpaque(s, &initKey) {
		return ErrMalformed
	}
	var cred CredentialWithKey
	if err := cred.unmarshal(s); err != nil {
		return err
	}
	var sig []byte
	if !tlscodec.ReadOpaque(s, &sig) {
		return ErrMalformed
	}
	kp.CipherSuite = CipherSuite(cs)
	kp.InitKey = initKey
	kp.Credential = cred
	kp.Signature = sig
	return nil
}

// Verify checks the KeyPackage's self-signature and, if wantIdentity is
// non-nil, that the credential identity matches exactly (spec.md §4.2
// verify_key_package).
func (kp KeyPackage) Verify(wantIdentity *string) bool {
	if !kp.CipherSuite.Valid() {
		return false
	}
	if !VerifySignature(kp.Credential.SignatureKey, kp.tbs(), kp.Signature) {
		return false
	}
	if wantIdentity != nil && kp.Credential.Identity() != *wantIdentity {
		return false
	}
	return true
}

// GenerateKeyPairPackage mints a fresh signature keypair and HPKE init
// keypair, builds a signed KeyPackage for credential under cs, and returns
// the bundle including private halves.
func GenerateKeyPairPackage(cs CipherSuite, credential BasicCredential) (KeyPackagePrivate, error) {
	if !cs.Valid() {
		return KeyPackagePrivate{}, ErrWrongCiphersuite
	}
	sig, err := GenerateSignatureKeyPair()
	if err != nil {
		return KeyPackagePrivate{}, fmt.Errorf("generate signature keypair: %w", err)
	}
	initPub, initPriv, err := GenerateHPKEKeyPair()
	if err != nil {
		return KeyPackagePrivate{}, fmt.Errorf("generate hpke keypair: %w", err)
	}

	kp := KeyPackage{
		CipherSuite: cs,
		InitKey:     initPub,
		Credential: CredentialWithKey{
			Credential:   credential,
			SignatureKey: sig.Public,
		},
	}
	kp.Signature = sig.Sign(kp.tbs())

	return KeyPackagePrivate{
		Public:        kp,
		SignaturePriv: sig.Private,
		InitPriv:      initPriv,
	}, nil
}

// MarshalKeyPackage is a package-level helper so callers outside mls (the
// facade) can serialize a KeyPackage without reaching into cryptobyte
// directly.
func MarshalKeyPackage(kp KeyPackage) ([]byte, error) {
	return tlscodec.Encode(kp)
}

// UnmarshalKeyPackage parses a TLS-encoded KeyPackage.
func UnmarshalKeyPackage(data []byte) (KeyPackage, error) {
	var kp KeyPackage
	if err := tlscodec.Decode(data, &kp); err != nil {
		return KeyPackage{}, err
	}
	return kp, nil
}
