package mls

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// SignatureKeyPair is the Ed25519 keypair a member signs its contributions
// with, mirroring the Rust source's openmls_basic_credential.SignatureKeyPair
// (see original_source/app/shared/mls-wasm/src/lib.rs: "signer: SignatureKeyPair").
type SignatureKeyPair struct {
	Private SignaturePrivateKey
	Public  SignaturePublicKey
}

// GenerateSignatureKeyPair mints a fresh Ed25519 keypair. spec.md §4.1:
// "Fails with CryptoFailure if signature-keypair generation fails."
func GenerateSignatureKeyPair() (SignatureKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SignatureKeyPair{}, fmt.Errorf("generate signature keypair: %w", err)
	}
	return SignatureKeyPair{
		Private: SignaturePrivateKey(priv),
		Public:  SignaturePublicKey(pub),
	}, nil
}

// Sign produces an Ed25519 signature over message.
func (kp SignatureKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(kp.Private), message)
}

// VerifySignature checks an Ed25519 signature under pub.
func VerifySignature(pub SignaturePublicKey, message, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, signature)
}

// signWith signs message with a raw private key, for call sites that only
// hold the private half (e.g. a Group after GroupFromWelcome).
func signWith(priv SignaturePrivateKey, message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv), message)
}
