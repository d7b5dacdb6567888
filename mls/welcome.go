package mls

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// groupSecrets is the plaintext a Welcome recipient recovers after opening
// their HPKE-sealed entry: enough to reconstruct the post-commit group
// state locally.
type groupSecrets struct {
	epochSecret []byte
	leafIndex   leafIndex
}

func (gs groupSecrets) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, gs.epochSecret)
	b.AddUint32(uint32(gs.leafIndex))
}

func (gs *groupSecrets) unmarshal(s *cryptobyte.String) error {
	var secret []byte
	if !tlscodec.ReadOpaque(s, &secret) {
		return ErrMalformed
	}
	var idx uint32
	if !s.ReadUint32(&idx) {
		return ErrMalformed
	}
	gs.epochSecret = secret
	gs.leafIndex = leafIndex(idx)
	return nil
}

// welcomeRecipient is one HPKE-sealed groupSecrets entry, addressed to a
// single new member by the hash of the KeyPackage they advertised.
type welcomeRecipient struct {
	keyPackageHash []byte
	enc            []byte
	ciphertext     []byte
}

func (wr welcomeRecipient) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, wr.keyPackageHash)
	tlscodec.WriteOpaque(b, wr.enc)
	tlscodec.WriteOpaque(b, wr.ciphertext)
}

func (wr *welcomeRecipient) unmarshal(s *cryptobyte.String) error {
	var hash, enc, ct []byte
	if !tlscodec.ReadOpaque(s, &hash) {
		return ErrMalformed
	}
	if !tlscodec.ReadOpaque(s, &enc) {
		return ErrMalformed
	}
	if !tlscodec.ReadOpaque(s, &ct) {
		return ErrMalformed
	}
	wr.keyPackageHash = hash
	wr.enc = enc
	wr.ciphertext = ct
	return nil
}

// Welcome is the message an adder gives to new members so they can
// initialize their group state at the post-commit epoch (spec.md glossary).
type Welcome struct {
	GroupID                 []byte
	Epoch                   uint64
	Tree                    ratchetTree
	ConfirmedTranscriptHash []byte
	Recipients              []welcomeRecipient
}

// Marshal implements tlscodec.Marshaler.
func (w Welcome) Marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, w.GroupID)
	b.AddUint64(w.Epoch)
	w.Tree.marshal(b)
	tlscodec.WriteOpaque(b, w.ConfirmedTranscriptHash)
	tlscodec.WriteVector(b, len(w.Recipients), func(b *cryptobyte.Builder, i int) {
		w.Recipients[i].marshal(b)
	})
}

// Unmarshal implements tlscodec.Unmarshaler.
func (w *Welcome) Unmarshal(s *cryptobyte.String) error {
	var gid []byte
	if !tlscodec.ReadOpaque(s, &gid) {
		return ErrMalformed
	}
	var epoch uint64
	if !s.ReadUint64(&epoch) {
		return ErrMalformed
	}
	var tree ratchetTree
	if err := tree.unmarshal(s); err != nil {
		return err
	}
	var cth []byte
	if !tlscodec.ReadOpaque(s, &cth) {
		return ErrMalformed
	}
	var recipients []welcomeRecipient
	err := tlscodec.ReadVector(s, func(s *cryptobyte.String) error {
		var wr welcomeRecipient
		if err := wr.unmarshal(s); err != nil {
			return err
		}
		recipients = append(recipients, wr)
		return nil
	})
	if err != nil {
		return err
	}
	w.GroupID = gid
	w.Epoch = epoch
	w.Tree = tree
	w.ConfirmedTranscriptHash = cth
	w.Recipients = recipients
	return nil
}

func keyPackageHash(kp KeyPackage) []byte {
	encoded, _ := MarshalKeyPackage(kp)
	sum := sha256.Sum256(encoded)
	return sum[:]
}

// sealGroupSecrets HPKE-seals secrets to recipient's init key, addressed by
// the hash of their advertised KeyPackage.
func sealGroupSecrets(recipientKP KeyPackage, groupID []byte, secrets groupSecrets) (welcomeRecipient, error) {
	b := cryptobyte.NewBuilder(nil)
	secrets.marshal(b)
	plaintext, _ := b.Bytes()

	info := append([]byte("mls welcome "), groupID...)
	enc, ct, err := hpkeSeal(recipientKP.InitKey, info, groupID, plaintext)
	if err != nil {
		return welcomeRecipient{}, fmt.Errorf("seal group secrets: %w", err)
	}
	return welcomeRecipient{
		keyPackageHash: keyPackageHash(recipientKP),
		enc:            enc,
		ciphertext:     ct,
	}, nil
}

// openGroupSecrets finds and opens the entry addressed to kp using initPriv.
func openGroupSecrets(w Welcome, kp KeyPackage, initPriv HPKEPrivateKey) (groupSecrets, error) {
	hash := keyPackageHash(kp)
	info := append([]byte("mls welcome "), w.GroupID...)
	for _, r := range w.Recipients {
		if string(r.keyPackageHash) != string(hash) {
			continue
		}
		plaintext, err := hpkeOpen(initPriv, r.enc, info, w.GroupID, r.ciphertext)
		if err != nil {
			return groupSecrets{}, fmt.Errorf("open group secrets: %w", err)
		}
		var gs groupSecrets
		s := cryptobyte.String(plaintext)
		if err := gs.unmarshal(&s); err != nil {
			return groupSecrets{}, fmt.Errorf("decode group secrets: %w", err)
		}
		if !s.Empty() {
			return groupSecrets{}, fmt.Errorf("decode group secrets: %w", ErrMalformed)
		}
		return gs, nil
	}
	return groupSecrets{}, ErrMalformed
}

// MarshalWelcome is a package-level helper mirroring MarshalKeyPackage.
func MarshalWelcome(w Welcome) ([]byte, error) {
	return tlscodec.Encode(w)
}

// UnmarshalWelcome parses a TLS-encoded Welcome.
func UnmarshalWelcome(data []byte) (Welcome, error) {
	var w Welcome
	if err := tlscodec.Decode(data, &w); err != nil {
		return Welcome{}, err
	}
	return w, nil
}
