// Package credential implements spec.md §2's CredentialStore: it produces
// (SignatureKeyPair, BasicCredential, CredentialWithKey) triples bound to a
// UTF-8 identity string. Grounded on mls/signature.go and mls/credential.go
// (package mls already owns the types; this package is the thin factory
// spec.md names as a distinct component, kept separate so internal/engine
// doesn't need to reach into mls's keypair generation directly for every
// operation that mints a new membership).
package credential

import (
	"fmt"

	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/mls"
)

// Identity is a triple minted for a fresh membership: the signer that
// authors contributions, and the credential binding its public half to an
// identity string.
type Identity struct {
	Signer     mls.SignatureKeyPair
	Credential mls.CredentialWithKey
}

// New mints a fresh Ed25519 signature keypair and binds it to identity as
// a BasicCredential. An empty identity is accepted (spec.md §8: "Empty
// identity string → accepted").
func New(op string, identity string) (Identity, error) {
	signer, err := mls.GenerateSignatureKeyPair()
	if err != nil {
		return Identity{}, mlserr.New(mlserr.CryptoFailure, op, fmt.Errorf("generate signer: %w", err))
	}
	basic := mls.NewBasicCredential([]byte(identity))
	return Identity{
		Signer: signer,
		Credential: mls.CredentialWithKey{
			Credential:   basic,
			SignatureKey: signer.Public,
		},
	}, nil
}
