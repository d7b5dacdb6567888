package mls

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// GroupInfo is a signed snapshot of group-level public state, exported for
// out-of-band publication and consumed by external joiners (spec.md
// glossary). This type doubles as the "VerifiableGroupInfo" spec.md
// mentions: decoding never requires verification, Verify is a separate
// step, matching spec.md §4.2's distinct decode_group_info / verify_group_info
// / join_with_group_info operations.
type GroupInfo struct {
	GroupID                 []byte
	Epoch                   uint64
	Tree                    ratchetTree
	ConfirmedTranscriptHash []byte
	ExternalPub             HPKEPublicKey
	SignerLeaf              leafIndex
	Signature               []byte
}

func (gi GroupInfo) tbs() []byte {
	b := cryptobyte.NewBuilder(nil)
	tlscodec.WriteOpaque(b, gi.GroupID)
	b.AddUint64(gi.Epoch)
	gi.Tree.marshal(b)
	tlscodec.WriteOpaque(b, gi.ConfirmedTranscriptHash)
	tlscodec.WriteOpaque(b, gi.ExternalPub)
	b.AddUint32(uint32(gi.SignerLeaf))
	encoded, _ := b.Bytes()
	return encoded
}

// Marshal implements tlscodec.Marshaler.
func (gi GroupInfo) Marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, gi.GroupID)
	b.AddUint64(gi.Epoch)
	gi.Tree.marshal(b)
	tlscodec.WriteOpaque(b, gi.ConfirmedTranscriptHash)
	tlscodec.WriteOpaque(b, gi.ExternalPub)
	b.AddUint32(uint32(gi.SignerLeaf))
	tlscodec.WriteOpaque(b, gi.Signature)
}

// Unmarshal implements tlscodec.Unmarshaler.
func (gi *GroupInfo) Unmarshal(s *cryptobyte.String) error {
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
	var extPub []byte
	if !tlscodec.ReadOpaque(s, &extPub) {
		return ErrMalformed
	}
	var signerLeaf uint32
	if !s.ReadUint32(&signerLeaf) {
		return ErrMalformed
	}
	var sig []byte
	if !tlscodec.ReadOpaque(s, &sig) {
		return ErrMalformed
	}
	gi.GroupID = gid
	gi.Epoch = epoch
	gi.Tree = tree
	gi.ConfirmedTranscriptHash = cth
	gi.ExternalPub = extPub
	gi.SignerLeaf = leafIndex(signerLeaf)
	gi.Signature = sig
	return nil
}

// Verify checks the GroupInfo's signature under the ciphersuite fixed by
// this library, using the signer leaf's own credential key (spec.md §4.2
// verify_group_info: "parse and verify under the current ciphersuite").
func (gi GroupInfo) Verify() bool {
	if int(gi.SignerLeaf) >= len(gi.Tree.leaves) {
		return false
	}
	signer := gi.Tree.leaves[gi.SignerLeaf]
	if signer.blank {
		return false
	}
	return VerifySignature(signer.credential.SignatureKey, gi.tbs(), gi.Signature)
}

// MarshalGroupInfo is a package-level helper mirroring MarshalKeyPackage.
func MarshalGroupInfo(gi GroupInfo) ([]byte, error) {
	return tlscodec.Encode(gi)
}

// UnmarshalGroupInfo parses a TLS-encoded GroupInfo without verifying it.
func UnmarshalGroupInfo(data []byte) (GroupInfo, error) {
	var gi GroupInfo
	if err := tlscodec.Decode(data, &gi); err != nil {
		return GroupInfo{}, err
	}
	return gi, nil
}
