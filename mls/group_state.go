package mls

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// groupState is the on-the-wire shape a Group is serialized to for
// persistence through Marshal/UnmarshalGroupState; cmd/mlsctl uses them,
// and internal/engine exposes no state export of its own. Grounded on
// matjam-go-mls's group_state.go, trimmed to the fields this simplified
// design actually carries: no privTree (there is no per-path private key
// material once a member has joined, only the one long-lived HPKE leaf key
// already embedded in the tree) and no pskSecret/initSecret (this design
// has no PSK injection, and initSecret is consumed once by CreateGroup and
// never retained).
type groupState struct {
	cs                    CipherSuite
	groupContext          groupContext
	tree                  ratchetTree
	interimTranscriptHash []byte
	epochSecret           []byte
	myLeafIndex           leafIndex
	credential            CredentialWithKey
	signaturePriv         SignaturePrivateKey
	pendingProposals      []pendingProposal
}

func (gs groupState) Marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(gs.cs))
	gs.groupContext.marshal(b)
	gs.tree.marshal(b)
	tlscodec.WriteOpaque(b, gs.interimTranscriptHash)
	tlscodec.WriteOpaque(b, gs.epochSecret)
	b.AddUint32(uint32(gs.myLeafIndex))
	gs.credential.marshal(b)
	tlscodec.WriteOpaque(b, gs.signaturePriv)
	tlscodec.WriteVector(b, len(gs.pendingProposals), func(b *cryptobyte.Builder, i int) {
		gs.pendingProposals[i].marshal(b)
	})
}

func (gs *groupState) Unmarshal(s *cryptobyte.String) error {
	*gs = groupState{}

	var cs uint16
	if !s.ReadUint16(&cs) {
		return ErrMalformed
	}
	gs.cs = CipherSuite(cs)

	if err := gs.groupContext.unmarshal(s); err != nil {
		return fmt.Errorf("unmarshal group context: %w", err)
	}
	if err := gs.tree.unmarshal(s); err != nil {
		return fmt.Errorf("unmarshal ratchet tree: %w", err)
	}

	var interim, epochSecret []byte
	if !tlscodec.ReadOpaque(s, &interim) {
		return ErrMalformed
	}
	if !tlscodec.ReadOpaque(s, &epochSecret) {
		return ErrMalformed
	}
	gs.interimTranscriptHash = interim
	gs.epochSecret = epochSecret

	var leaf uint32
	if !s.ReadUint32(&leaf) {
		return ErrMalformed
	}
	gs.myLeafIndex = leafIndex(leaf)

	var cred CredentialWithKey
	if err := cred.unmarshal(s); err != nil {
		return fmt.Errorf("unmarshal credential: %w", err)
	}
	gs.credential = cred

	var sigPriv []byte
	if !tlscodec.ReadOpaque(s, &sigPriv) {
		return ErrMalformed
	}
	gs.signaturePriv = sigPriv

	err := tlscodec.ReadVector(s, func(s *cryptobyte.String) error {
		var pp pendingProposal
		if err := pp.unmarshal(s); err != nil {
			return err
		}
		gs.pendingProposals = append(gs.pendingProposals, pp)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unmarshal pending proposals: %w", err)
	}
	return nil
}

// Marshal serializes the Group's durable state for storage. The per-epoch
// sender ratchet and receiver replay cache are intentionally excluded:
// they're cheap to re-derive from epochSecret the first time they're
// needed, and persisting a ratchet position would invite reuse of a
// (key, nonce) pair if the restored group and the live one ever sealed a
// message at the same generation.
func (g *Group) Marshal() ([]byte, error) {
	gs := groupState{
		cs:                    g.cs,
		groupContext:          g.groupContext,
		tree:                  g.tree,
		interimTranscriptHash: g.interimTranscriptHash,
		epochSecret:           g.epochSecret,
		myLeafIndex:           g.myLeafIndex,
		credential:            g.credential,
		signaturePriv:         g.signaturePriv,
		pendingProposals:      g.pendingProposals,
	}
	return tlscodec.Encode(gs)
}

// UnmarshalGroupState restores a Group from bytes produced by Marshal. The
// restored group's sender ratchet starts fresh at generation 0 and its
// receiver replay cache starts empty, both lazily rebuilt from epochSecret
// on first use.
func UnmarshalGroupState(data []byte) (*Group, error) {
	var gs groupState
	if err := tlscodec.Decode(data, &gs); err != nil {
		return nil, fmt.Errorf("unmarshal group state: %w", err)
	}
	return &Group{
		cs:                    gs.cs,
		groupContext:          gs.groupContext,
		tree:                  gs.tree,
		interimTranscriptHash: gs.interimTranscriptHash,
		epochSecret:           gs.epochSecret,
		myLeafIndex:           gs.myLeafIndex,
		credential:            gs.credential,
		signaturePriv:         gs.signaturePriv,
		pendingProposals:      gs.pendingProposals,
	}, nil
}
