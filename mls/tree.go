package mls

import (
	"crypto/sha256"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// leafIndex names a member's position in the ratchet tree.
type leafIndex uint32

// leafNode holds one member's public material. The blank flag marks a
// vacated slot left behind by a remove, so indices of untouched members
// stay stable (spec.md glossary: "Leaf index: ... stable for the lifetime
// of that member's keypair within the group").
type leafNode struct {
	blank      bool
	credential CredentialWithKey
	hpkePub    HPKEPublicKey
}

func (l leafNode) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOptional(b, !l.blank)
	if l.blank {
		return
	}
	l.credential.marshal(b)
	tlscodec.WriteOpaque(b, l.hpkePub)
}

func (l *leafNode) unmarshal(s *cryptobyte.String) error {
	var present bool
	if !tlscodec.ReadOptional(s, &present) {
		return ErrMalformed
	}
	if !present {
		*l = leafNode{blank: true}
		return nil
	}
	var cred CredentialWithKey
	if err := cred.unmarshal(s); err != nil {
		return err
	}
	var hpkePub []byte
	if !tlscodec.ReadOpaque(s, &hpkePub) {
		return ErrMalformed
	}
	*l = leafNode{credential: cred, hpkePub: hpkePub}
	return nil
}

// ratchetTree is a flat, array-based representation of the group's member
// list. RFC 9420's full left-balanced binary tree is collapsed here to its
// leaf layer only — the facade never needs parent-node path secrets because
// welcome secrets are carried via the HPKE-sealed GroupSecrets payload
// (welcome.go) and commit secrets are derived from the commit bytes
// themselves (commit.go) rather than a tree-wide path update, which keeps this
// a faithful re-expression of the member-list semantics the spec actually
// exercises (add/remove/update/list) without the full RFC 9420 tree-KEM math.
type ratchetTree struct {
	leaves []leafNode
}

func newRatchetTree(first leafNode) ratchetTree {
	return ratchetTree{leaves: []leafNode{first}}
}

func (t ratchetTree) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteVector(b, len(t.leaves), func(b *cryptobyte.Builder, i int) {
		t.leaves[i].marshal(b)
	})
}

func (t *ratchetTree) unmarshal(s *cryptobyte.String) error {
	t.leaves = nil
	err := tlscodec.ReadVector(s, func(s *cryptobyte.String) error {
		var l leafNode
		if err := l.unmarshal(s); err != nil {
			return err
		}
		t.leaves = append(t.leaves, l)
		return nil
	})
	return err
}

// addLeaf inserts node into the first blank slot, or appends if none exists,
// returning the assigned leaf index.
func (t *ratchetTree) addLeaf(node leafNode) leafIndex {
	for i := range t.leaves {
		if t.leaves[i].blank {
			t.leaves[i] = node
			return leafIndex(i)
		}
	}
	t.leaves = append(t.leaves, node)
	return leafIndex(len(t.leaves) - 1)
}

// removeLeaf blanks the slot at idx.
func (t *ratchetTree) removeLeaf(idx leafIndex) error {
	if int(idx) >= len(t.leaves) || t.leaves[idx].blank {
		return ErrUnknownLeaf
	}
	t.leaves[idx] = leafNode{blank: true}
	return nil
}

// updateLeaf replaces the credential/key material at idx in place.
func (t *ratchetTree) updateLeaf(idx leafIndex, node leafNode) error {
	if int(idx) >= len(t.leaves) || t.leaves[idx].blank {
		return ErrUnknownLeaf
	}
	t.leaves[idx] = node
	return nil
}

// members returns the identity strings of non-blank, basic-credential
// leaves in leaf-index order (spec.md §4.2 get_group_members: "skipping
// non-basic credentials silently").
func (t ratchetTree) members() []string {
	out := make([]string, 0, len(t.leaves))
	for _, l := range t.leaves {
		if l.blank {
			continue
		}
		out = append(out, l.credential.Identity())
	}
	return out
}

// hash returns a binding digest of the whole tree, folded into the group
// context so any divergence in membership changes the context (and thus
// every epoch-derived secret).
func (t ratchetTree) hash() []byte {
	b := cryptobyte.NewBuilder(nil)
	t.marshal(b)
	encoded, _ := b.Bytes()
	sum := sha256.Sum256(encoded)
	return sum[:]
}
