package mls

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveSecret expands secret into length bytes of key material bound to
// label and context, in the style of germtb-mlsgit's DeriveFileKey (HKDF
// over SHA-256 with a domain-separating info string).
func deriveSecret(secret []byte, label string, context []byte, length int) []byte {
	info := append([]byte("mls 1.0 "+label+" "), context...)
	r := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("hkdf expand: %v", err))
	}
	return out
}

// nextEpochSecret derives the epoch N+1 secret from the epoch N secret, the
// commit secret contributed by the merged commit, and the new group context
// (group id, epoch, tree hash, confirmed transcript hash).
func nextEpochSecret(epochSecret, commitSecret []byte, groupContext []byte) []byte {
	extracted := hkdfExtract(epochSecret, commitSecret)
	return epochSecretFromExtract(extracted, groupContext)
}

// externalCommitEpochSecret derives the post-commit epoch secret for an
// external commit. An external joiner has no prior epoch secret to chain
// from, so the commitSecret it HPKE-sealed to the group's external public
// key (see hpke.go) is used directly as the extracted secret; both the
// joiner and every existing member (who recovers commitSecret by opening
// that seal) land on the same value.
func externalCommitEpochSecret(commitSecret, groupContext []byte) []byte {
	return epochSecretFromExtract(commitSecret, groupContext)
}

func epochSecretFromExtract(extracted, groupContext []byte) []byte {
	return deriveSecret(extracted, "epoch", groupContext, KeySize)
}

func hkdfExtract(salt, ikm []byte) []byte {
	// Not a bare HKDF-Extract: this reads the first KeySize bytes of
	// hkdf.New(...) with empty info, i.e. an extract followed by a KeySize
	// expand (germtb-mlsgit's symmetric.go uses the same hkdf.New(...)
	// one-call pattern rather than a separate extract step). Every member
	// derives it the same way, so the epoch schedule stays in agreement.
	r := hkdf.New(sha256.New, ikm, salt, nil)
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("hkdf extract: %v", err))
	}
	return out
}

// exporterSecret derives the exporter secret for an epoch. No code in the
// module calls it; GroupInfo export carries no exporter-derived material.
func exporterSecret(epochSecret []byte) []byte {
	return deriveSecret(epochSecret, "exporter", nil, KeySize)
}

// applicationSecret derives the application-message base secret for an
// epoch; per-sender ratchets (ratchet.go) descend from this.
func applicationSecret(epochSecret []byte) []byte {
	return deriveSecret(epochSecret, "application", nil, KeySize)
}

// confirmationKey derives the key used to compute/verify a Commit
// confirmation tag (a GroupInfo is signed, not tagged).
func confirmationKey(epochSecret []byte) []byte {
	return deriveSecret(epochSecret, "confirm", nil, KeySize)
}

// externalSeed derives the seed for the group's external-commit HPKE
// keypair (mls/hpke.go's deriveHPKEKeyPair) from the epoch secret.
func externalSeed(epochSecret []byte) []byte {
	return deriveSecret(epochSecret, "external", nil, KeySize)
}

// senderRatchetSeed derives the starting ratchet secret for leafIndex in the
// current epoch's application secret tree.
func senderRatchetSeed(appSecret []byte, leafIndex uint32) []byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], leafIndex)
	return deriveSecret(appSecret, "sender", idx[:], KeySize)
}
