package mls

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// commit bundles the proposals it applies plus the committer's fresh
// entropy. The commitSecret is a hash of the encoded commit (nonce and
// proposals), and every member who already shares the prior epoch secret
// derives an identical next epoch secret from it — see keyschedule.go's
// nextEpochSecret — so no per-recipient path-secret
// distribution is required. This trades RFC 9420's full tree-KEM path
// update for a simpler, still-authenticated epoch transition; see
// DESIGN.md for the rationale.
type commit struct {
	proposals []proposal
	nonce     []byte
}

func (c commit) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteVector(b, len(c.proposals), func(b *cryptobyte.Builder, i int) {
		c.proposals[i].marshal(b)
	})
	tlscodec.WriteOpaque(b, c.nonce)
}

func (c *commit) unmarshal(s *cryptobyte.String) error {
	c.proposals = nil
	err := tlscodec.ReadVector(s, func(s *cryptobyte.String) error {
		var p proposal
		if err := p.unmarshal(s); err != nil {
			return err
		}
		c.proposals = append(c.proposals, p)
		return nil
	})
	if err != nil {
		return err
	}
	var nonce []byte
	if !tlscodec.ReadOpaque(s, &nonce) {
		return ErrMalformed
	}
	c.nonce = nonce
	return nil
}

func (c commit) commitBytes() []byte {
	b := cryptobyte.NewBuilder(nil)
	c.marshal(b)
	encoded, _ := b.Bytes()
	return encoded
}
