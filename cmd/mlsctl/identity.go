package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

// identityPassphraseEnv names the environment variable mlsctl reads an
// optional PKCS8 encryption passphrase from, matching
// germtb-mlsgit/internal/crypto.PassphraseEnv's role.
const identityPassphraseEnv = "MLSCTL_PASSPHRASE"

// localIdentity is a CLI-only Ed25519 keypair persisted across mlsctl
// invocations in the working directory, independent of any MLS group's
// credential. Grounded on germtb-mlsgit/internal/crypto/signing.go's
// PEM/PKCS8 export; kept deliberately out of the MLS codepath, consistent
// with spec.md's non-goal on persisting *group* state — this is a
// convenience identity for "whoami"-style display and future signed
// requests, never a group member's credential signer.
type localIdentity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// ensureIdentity loads the CLI's persisted identity, minting and saving a
// fresh one on first use.
func ensureIdentity(p mlsctlPaths) (localIdentity, error) {
	if _, err := os.Stat(p.identityPEM()); err == nil {
		return loadIdentity(p)
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return localIdentity{}, fmt.Errorf("generate identity keypair: %w", err)
	}
	id := localIdentity{Public: pub, Private: priv}
	if err := saveIdentity(p, id); err != nil {
		return localIdentity{}, err
	}
	return id, nil
}

func saveIdentity(p mlsctlPaths, id localIdentity) error {
	var block *pem.Block
	if passphrase := os.Getenv(identityPassphraseEnv); passphrase != "" {
		encrypted, err := pkcs8.MarshalPrivateKey(id.Private, []byte(passphrase), nil)
		if err != nil {
			return fmt.Errorf("marshal encrypted identity private key: %w", err)
		}
		block = &pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: encrypted}
	} else {
		privBytes, err := x509.MarshalPKCS8PrivateKey(id.Private)
		if err != nil {
			return fmt.Errorf("marshal identity private key: %w", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}
	}
	if err := os.WriteFile(p.identityPEM(), pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write identity.pem: %w", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(id.Public)
	if err != nil {
		return fmt.Errorf("marshal identity public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	return os.WriteFile(p.identityPub(), pubPEM, 0o644)
}

func loadIdentity(p mlsctlPaths) (localIdentity, error) {
	privData, err := os.ReadFile(p.identityPEM())
	if err != nil {
		return localIdentity{}, fmt.Errorf("read identity.pem: %w", err)
	}
	block, _ := pem.Decode(privData)
	if block == nil {
		return localIdentity{}, fmt.Errorf("decode identity.pem: no PEM block")
	}

	var key any
	if block.Type == "ENCRYPTED PRIVATE KEY" {
		key, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(os.Getenv(identityPassphraseEnv)))
	} else {
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return localIdentity{}, fmt.Errorf("parse identity private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return localIdentity{}, fmt.Errorf("identity key is not Ed25519")
	}
	return localIdentity{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// fingerprint returns a short, stable hex label for the identity's public
// key, for "mlsctl whoami"-style display.
func (id localIdentity) fingerprint() string {
	sum := sha256.Sum256(id.Public)
	return fmt.Sprintf("%x", sum[:8])
}
