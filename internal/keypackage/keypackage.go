// Package keypackage implements spec.md §2's KeyPackageFactory and §4.1's
// generate_key_package: it builds and serializes MLS KeyPackage objects for
// a given credential. Grounded on mls/keypackage.go's
// GenerateKeyPairPackage; this package is the facade-level wrapper that
// discards the private half spec.md §3 documents as "the returned key
// package is a standalone advertisement; the secret material is
// discarded."
package keypackage

import (
	"crypto/sha256"
	"fmt"

	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/mls"
)

// Generate mints a fresh keypair bundle for identity, returning only the
// signed, public KeyPackage — the private halves are never retained.
// Matches spec.md §9 "key-package-without-bundle semantics": a later
// join_with_welcome addressed to this package mints its own fresh keys
// rather than recovering these.
func Generate(cs mls.CipherSuite, identity string) (mls.KeyPackage, error) {
	kpp, err := mls.GenerateKeyPairPackage(cs, mls.NewBasicCredential([]byte(identity)))
	if err != nil {
		return mls.KeyPackage{}, mlserr.New(mlserr.CryptoFailure, "generate_key_package", err)
	}
	return kpp.Public, nil
}

// Summary returns a short, non-secret label for kp — its identity and the
// first bytes of its content hash — for test diagnostics only. Never
// surfaced across the host boundary (lib_old.rs's equivalent placeholder
// hash was similarly internal-only).
func Summary(kp mls.KeyPackage) string {
	encoded, err := mls.MarshalKeyPackage(kp)
	if err != nil {
		return fmt.Sprintf("keypackage(%s, invalid)", kp.Credential.Identity())
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("keypackage(%s, %x)", kp.Credential.Identity(), sum[:6])
}
