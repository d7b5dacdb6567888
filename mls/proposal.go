package mls

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// proposalType tags the variant carried by a proposal.
type proposalType uint8

const (
	proposalTypeAdd proposalType = iota + 1
	proposalTypeRemove
	proposalTypeUpdate
	proposalTypeExternalInit
)

// proposal is a pending Add/Remove/Update change that a Commit bundles and
// applies. Grounded on matjam-go-mls's group_state.go, which already
// marshals a *proposal field inside pendingProposal; this file supplies the
// proposal type itself, which the teacher snippet assumed existed
// elsewhere in the library.
type proposal struct {
	kind proposalType

	// Add
	addKeyPackage KeyPackage

	// Remove
	removeLeaf leafIndex

	// Update
	updateLeaf      leafIndex
	updateNode      leafNode
	updateSigPriv   SignaturePrivateKey
	updateInitPriv  HPKEPrivateKey

	// ExternalInit: an HPKE encapsulation (to the group's external public
	// key, see hpke.go's deriveHPKEKeyPair) of a fresh commit secret the
	// joiner chose, letting every current member recover it without the
	// joiner ever learning the shared epoch secret it was derived from.
	externalEnc []byte
	externalCT  []byte
}

func (p proposal) marshal(b *cryptobyte.Builder) {
	b.AddUint8(uint8(p.kind))
	switch p.kind {
	case proposalTypeAdd:
		p.addKeyPackage.Marshal(b)
	case proposalTypeRemove:
		b.AddUint32(uint32(p.removeLeaf))
	case proposalTypeUpdate:
		b.AddUint32(uint32(p.updateLeaf))
		p.updateNode.marshal(b)
	case proposalTypeExternalInit:
		tlscodec.WriteOpaque(b, p.externalEnc)
		tlscodec.WriteOpaque(b, p.externalCT)
	}
}

func (p *proposal) unmarshal(s *cryptobyte.String) error {
	var kind uint8
	if !s.ReadUint8(&kind) {
		return ErrMalformed
	}
	p.kind = proposalType(kind)
	switch p.kind {
	case proposalTypeAdd:
		var kp KeyPackage
		if err := kp.Unmarshal(s); err != nil {
			return err
		}
		p.addKeyPackage = kp
	case proposalTypeRemove:
		var idx uint32
		if !s.ReadUint32(&idx) {
			return ErrMalformed
		}
		p.removeLeaf = leafIndex(idx)
	case proposalTypeUpdate:
		var idx uint32
		if !s.ReadUint32(&idx) {
			return ErrMalformed
		}
		var node leafNode
		if err := node.unmarshal(s); err != nil {
			return err
		}
		p.updateLeaf = leafIndex(idx)
		p.updateNode = node
	case proposalTypeExternalInit:
		var enc, ct []byte
		if !tlscodec.ReadOpaque(s, &enc) {
			return ErrMalformed
		}
		if !tlscodec.ReadOpaque(s, &ct) {
			return ErrMalformed
		}
		p.externalEnc = enc
		p.externalCT = ct
	default:
		return ErrMalformed
	}
	return nil
}

// pendingProposal associates a proposal with the sender leaf that issued it,
// as in matjam-go-mls's group_state.go.
type pendingProposal struct {
	ref      []byte
	proposal *proposal
	sender   leafIndex
}

func (pp pendingProposal) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, pp.ref)
	pp.proposal.marshal(b)
	b.AddUint32(uint32(pp.sender))
}

func (pp *pendingProposal) unmarshal(s *cryptobyte.String) error {
	*pp = pendingProposal{}
	var ref []byte
	if !tlscodec.ReadOpaque(s, &ref) {
		return ErrMalformed
	}
	pp.ref = ref
	pp.proposal = new(proposal)
	if err := pp.proposal.unmarshal(s); err != nil {
		return err
	}
	var sender uint32
	if !s.ReadUint32(&sender) {
		return ErrMalformed
	}
	pp.sender = leafIndex(sender)
	return nil
}
