package mls

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

// hpkeSuite is the single HPKE instantiation this ciphersuite fixes:
// DHKEM(X25519, HKDF-SHA256), HKDF-SHA256, AES-128-GCM. Grounded on
// matjam-go-mls's go.mod dependency on github.com/cloudflare/circl, which
// is the pack's only real HPKE implementation.
var hpkeSuite = hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES128GCM)

func hpkeScheme() kem.Scheme {
	return hpke.KEM_X25519_HKDF_SHA256.Scheme()
}

// HPKEPublicKey is the serialized form of an HPKE encapsulation key.
type HPKEPublicKey []byte

// HPKEPrivateKey is the serialized form of an HPKE decapsulation key.
type HPKEPrivateKey []byte

// GenerateHPKEKeyPair mints a fresh init/leaf HPKE keypair.
func GenerateHPKEKeyPair() (HPKEPublicKey, HPKEPrivateKey, error) {
	scheme := hpkeScheme()
	pub, priv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("generate hpke keypair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal hpke public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal hpke private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

// deriveHPKEKeyPair deterministically derives an HPKE keypair from seed, used
// for the group's "external" keypair: every member can re-derive the same
// private key from the current epoch secret, while only the public half is
// ever published (in GroupInfo), matching RFC 9420's external-commit design.
func deriveHPKEKeyPair(seed []byte) (HPKEPublicKey, HPKEPrivateKey, error) {
	scheme := hpkeScheme()
	size := scheme.SeedSize()
	if len(seed) < size {
		padded := make([]byte, size)
		copy(padded, seed)
		seed = padded
	}
	pub, priv := scheme.DeriveKeyPair(seed[:size])
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal derived hpke public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal derived hpke private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

// hpkeSeal encrypts plaintext to recipientPub under info/aad, returning the
// encapsulated key and ciphertext.
func hpkeSeal(recipientPub HPKEPublicKey, info, aad, plaintext []byte) (enc, ciphertext []byte, err error) {
	scheme := hpkeScheme()
	pub, err := scheme.UnmarshalBinaryPublicKey(recipientPub)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal hpke public key: %w", err)
	}
	sender, err := hpkeSuite.NewSender(pub, info)
	if err != nil {
		return nil, nil, fmt.Errorf("hpke sender setup: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("hpke sender: %w", err)
	}
	ciphertext, err = sealer.Seal(plaintext, aad)
	if err != nil {
		return nil, nil, fmt.Errorf("hpke seal: %w", err)
	}
	return enc, ciphertext, nil
}

// hpkeOpen decrypts a blob produced by hpkeSeal using the holder's private key.
func hpkeOpen(recipientPriv HPKEPrivateKey, enc, info, aad, ciphertext []byte) ([]byte, error) {
	scheme := hpkeScheme()
	priv, err := scheme.UnmarshalBinaryPrivateKey(recipientPriv)
	if err != nil {
		return nil, fmt.Errorf("unmarshal hpke private key: %w", err)
	}
	receiver, err := hpkeSuite.NewReceiver(priv, info)
	if err != nil {
		return nil, fmt.Errorf("hpke receiver setup: %w", err)
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, fmt.Errorf("hpke receiver: %w", err)
	}
	plaintext, err := opener.Open(ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("hpke open: %w", err)
	}
	return plaintext, nil
}
