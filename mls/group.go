package mls

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/takoserver/mlsengine/internal/tlscodec"
)

// groupContext is the group-level state every epoch-derived secret is bound
// to: mutating the tree, the epoch counter, or the transcript all change
// every secret downstream of it.
type groupContext struct {
	groupID                 []byte
	epoch                   uint64
	treeHash                []byte
	confirmedTranscriptHash []byte
}

func (gc groupContext) marshal(b *cryptobyte.Builder) {
	tlscodec.WriteOpaque(b, gc.groupID)
	b.AddUint64(gc.epoch)
	tlscodec.WriteOpaque(b, gc.treeHash)
	tlscodec.WriteOpaque(b, gc.confirmedTranscriptHash)
}

func (gc *groupContext) unmarshal(s *cryptobyte.String) error {
	var gid, th, cth []byte
	if !tlscodec.ReadOpaque(s, &gid) {
		return ErrMalformed
	}
	var epoch uint64
	if !s.ReadUint64(&epoch) {
		return ErrMalformed
	}
	if !tlscodec.ReadOpaque(s, &th) {
		return ErrMalformed
	}
	if !tlscodec.ReadOpaque(s, &cth) {
		return ErrMalformed
	}
	gc.groupID = gid
	gc.epoch = epoch
	gc.treeHash = th
	gc.confirmedTranscriptHash = cth
	return nil
}

func (gc groupContext) bytes() []byte {
	b := cryptobyte.NewBuilder(nil)
	gc.marshal(b)
	encoded, _ := b.Bytes()
	return encoded
}

// Group is a single member's view of one MLS group: its own position in the
// tree, the current epoch's secrets, and the transcript hashes binding
// every accepted commit to the ones before it. Every exported operation
// mutates this in place on success and leaves it untouched on failure,
// matching spec.md §5's "operations either fully apply or fully fail".
type Group struct {
	cs CipherSuite

	groupContext          groupContext
	tree                  ratchetTree
	interimTranscriptHash []byte

	epochSecret []byte
	myLeafIndex leafIndex

	credential    CredentialWithKey
	signaturePriv SignaturePrivateKey

	pendingProposals []pendingProposal

	ownRatchet *senderRatchet
	receiver   *receiverState
}

// ProcessedMessage is what ProcessMessage returns: the kind of content that
// was applied, the decrypted application payload (if any), and the member
// list after the change (for commits, so callers don't need a separate
// get_group_members round-trip to notice additions/removals).
type ProcessedMessage struct {
	ContentType ContentType
	Plaintext   []byte
	Members     []string
}

// GroupID is a convenience constructor for tests and callers that want a
// human-readable group identifier rather than random bytes.
func GroupID(label string) []byte {
	return []byte(label)
}

// RandomGroupID mints a fresh random group identifier, as the facade's
// create_group does when the caller doesn't supply one (spec.md §4.2:
// "an internally randomized group id").
func RandomGroupID() ([]byte, error) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("generate group id: %w", err)
	}
	return id, nil
}

// CreateGroup starts a brand-new single-member group at epoch 0 for kpp,
// addressed by groupID. Use RandomGroupID (via the facade) or GroupID for a
// caller-supplied label.
func CreateGroup(groupID []byte, kpp KeyPackagePrivate) (*Group, error) {
	if !kpp.Public.CipherSuite.Valid() {
		return nil, ErrWrongCiphersuite
	}

	leaf := leafNode{credential: kpp.Public.Credential, hpkePub: kpp.Public.InitKey}
	tree := newRatchetTree(leaf)

	gc := groupContext{
		groupID:                 append([]byte(nil), groupID...),
		epoch:                   0,
		treeHash:                tree.hash(),
		confirmedTranscriptHash: nil,
	}

	initSecret := make([]byte, KeySize)
	if _, err := rand.Read(initSecret); err != nil {
		return nil, fmt.Errorf("generate init secret: %w", err)
	}

	return &Group{
		cs:            kpp.Public.CipherSuite,
		groupContext:  gc,
		tree:          tree,
		epochSecret:   deriveSecret(initSecret, "init", gc.bytes(), KeySize),
		myLeafIndex:   0,
		credential:    kpp.Public.Credential,
		signaturePriv: kpp.SignaturePriv,
	}, nil
}

// GroupFromWelcome joins a group from a Welcome addressed to kpp, landing
// directly at the post-commit epoch the committer already advanced to
// (spec.md §4.2 join_with_welcome: "the caller is a full member at the new
// epoch immediately, with no separate merge step").
func GroupFromWelcome(w Welcome, kpp KeyPackagePrivate) (*Group, error) {
	gs, err := openGroupSecrets(w, kpp.Public, kpp.InitPriv)
	if err != nil {
		return nil, err
	}
	if int(gs.leafIndex) >= len(w.Tree.leaves) || w.Tree.leaves[gs.leafIndex].blank {
		return nil, ErrUnknownLeaf
	}

	gc := groupContext{
		groupID:                 w.GroupID,
		epoch:                   w.Epoch,
		treeHash:                w.Tree.hash(),
		confirmedTranscriptHash: w.ConfirmedTranscriptHash,
	}

	return &Group{
		cs:            kpp.Public.CipherSuite,
		groupContext:  gc,
		tree:          w.Tree,
		epochSecret:   gs.epochSecret,
		myLeafIndex:   gs.leafIndex,
		credential:    kpp.Public.Credential,
		signaturePriv: kpp.SignaturePriv,
	}, nil
}

// GroupFromExternalCommit builds the commit an external joiner uses to add
// themselves to a group they only know via a published GroupInfo, and
// returns both the joiner's own post-commit Group and the commit bytes
// existing members must process (spec.md §4.2 join_with_group_info).
func GroupFromExternalCommit(gi GroupInfo, kpp KeyPackagePrivate) (*Group, []byte, error) {
	if !gi.Verify() {
		return nil, nil, ErrBadSignature
	}

	commitSecret := make([]byte, KeySize)
	if _, err := rand.Read(commitSecret); err != nil {
		return nil, nil, fmt.Errorf("generate external commit secret: %w", err)
	}

	info := append([]byte("mls external commit "), gi.GroupID...)
	enc, ct, err := hpkeSeal(gi.ExternalPub, info, gi.GroupID, commitSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("seal external commit secret: %w", err)
	}

	proposals := []proposal{
		{kind: proposalTypeExternalInit, externalEnc: enc, externalCT: ct},
		{kind: proposalTypeAdd, addKeyPackage: kpp.Public},
	}

	newTree, addedLeaves, err := applyProposals(gi.Tree, proposals)
	if err != nil {
		return nil, nil, err
	}
	if len(addedLeaves) != 1 {
		return nil, nil, ErrMalformed
	}
	myLeafIndex := addedLeaves[0]

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate commit nonce: %w", err)
	}
	commitObj := commit{proposals: proposals, nonce: nonce}

	newConfirmed := foldConfirmed(gi.ConfirmedTranscriptHash, commitObj, myLeafIndex)
	newGroupContext := groupContext{
		groupID:                 gi.GroupID,
		epoch:                   gi.Epoch + 1,
		treeHash:                newTree.hash(),
		confirmedTranscriptHash: newConfirmed,
	}
	newEpochSecret := externalCommitEpochSecret(commitSecret, newGroupContext.bytes())

	fc := framedContent{
		groupID:     gi.GroupID,
		epoch:       gi.Epoch,
		sender:      myLeafIndex,
		contentType: ContentCommit,
		commit:      &commitObj,
	}
	fc.signature = signWith(kpp.SignaturePriv, fc.tbs())

	pm := publicMessage{
		content:         fc,
		confirmationTag: computeConfirmationTag(newEpochSecret, newConfirmed),
	}
	commitBytes, err := MarshalMlsMessage(MlsMessage{WireFormat: WireFormatPublicMessage, public: &pm})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal external commit: %w", err)
	}

	newInterim := sha256Sum(append(append([]byte{}, newConfirmed...), fc.signature...))

	joined := &Group{
		cs:                    kpp.Public.CipherSuite,
		groupContext:          newGroupContext,
		tree:                  newTree,
		interimTranscriptHash: newInterim,
		epochSecret:           newEpochSecret,
		myLeafIndex:           myLeafIndex,
		credential:            kpp.Public.Credential,
		signaturePriv:         kpp.SignaturePriv,
	}
	return joined, commitBytes, nil
}

// Epoch returns the current epoch number.
func (g *Group) Epoch() uint64 { return g.groupContext.epoch }

// LeafIndex returns the caller's own leaf index.
func (g *Group) LeafIndex() uint32 { return uint32(g.myLeafIndex) }

// GroupIDBytes returns the group identifier.
func (g *Group) GroupIDBytes() []byte { return g.groupContext.groupID }

// Members returns the identities of every current, non-blank member, in
// leaf-index order (spec.md §4.2 get_group_members).
func (g *Group) Members() []string { return g.tree.members() }

// AdoptSelfUpdateKeys installs the signature private key generated by a
// prior UpdateKey call once the matching commit has been merged. The
// library can't do this automatically inside ProcessMessage because a
// received commit (from any other member's update) carries no private
// material at all; only the caller that originated the update knows which
// key to adopt.
func (g *Group) AdoptSelfUpdateKeys(sigPriv SignaturePrivateKey) {
	g.signaturePriv = sigPriv
}

// CreateWelcome adds recipients to the group in a single commit, returning
// both the Welcome they need to join and the commit bytes every existing
// member (including the caller, which must merge its own commit) must
// process. It fails with ErrEmptyProposalSet if recipients is empty and
// with ErrBadSignature if any recipient's KeyPackage fails to verify.
func (g *Group) CreateWelcome(recipients []KeyPackage) (Welcome, []byte, error) {
	if len(recipients) == 0 {
		return Welcome{}, nil, ErrEmptyProposalSet
	}
	for _, kp := range recipients {
		if !kp.Verify(nil) {
			return Welcome{}, nil, ErrBadSignature
		}
	}

	proposals := make([]proposal, len(recipients))
	for i, kp := range recipients {
		proposals[i] = proposal{kind: proposalTypeAdd, addKeyPackage: kp}
	}

	newTree, addedLeaves, newGroupContext, newEpochSecret, commitObj, err := g.buildCommit(proposals)
	if err != nil {
		return Welcome{}, nil, err
	}

	pm := g.frameAndSignCommit(commitObj, newGroupContext.confirmedTranscriptHash, newEpochSecret)
	commitBytes, err := MarshalMlsMessage(MlsMessage{WireFormat: WireFormatPublicMessage, public: &pm})
	if err != nil {
		return Welcome{}, nil, fmt.Errorf("marshal commit: %w", err)
	}

	recipientEntries := make([]welcomeRecipient, len(recipients))
	for i, kp := range recipients {
		secrets := groupSecrets{epochSecret: newEpochSecret, leafIndex: addedLeaves[i]}
		wr, err := sealGroupSecrets(kp, g.groupContext.groupID, secrets)
		if err != nil {
			return Welcome{}, nil, err
		}
		recipientEntries[i] = wr
	}

	welcome := Welcome{
		GroupID:                 g.groupContext.groupID,
		Epoch:                   newGroupContext.epoch,
		Tree:                    newTree,
		ConfirmedTranscriptHash: newGroupContext.confirmedTranscriptHash,
		Recipients:              recipientEntries,
	}
	return welcome, commitBytes, nil
}

// RemoveMembers commits the removal of the given leaves, blanking their
// slots. spec.md §4.2 remove_members: "Fails with UnknownLeaf if any index
// names a blank or out-of-range slot" and "Removing one's own leaf index is
// permitted" (the caller then holds a group it can no longer send to).
func (g *Group) RemoveMembers(leaves []uint32) ([]byte, error) {
	proposals := make([]proposal, 0, len(leaves))
	for _, l := range leaves {
		idx := leafIndex(l)
		if int(idx) >= len(g.tree.leaves) || g.tree.leaves[idx].blank {
			return nil, ErrUnknownLeaf
		}
		proposals = append(proposals, proposal{kind: proposalTypeRemove, removeLeaf: idx})
	}

	_, _, newGroupContext, newEpochSecret, commitObj, err := g.buildCommit(proposals)
	if err != nil {
		return nil, err
	}

	pm := g.frameAndSignCommit(commitObj, newGroupContext.confirmedTranscriptHash, newEpochSecret)
	return MarshalMlsMessage(MlsMessage{WireFormat: WireFormatPublicMessage, public: &pm})
}

// UpdateKey commits a fresh signature and HPKE keypair for the caller's own
// leaf, returning the commit bytes to broadcast and the new KeyPackagePrivate
// holding the private halves. The caller must merge the resulting commit
// (ProcessMessage) and then call AdoptSelfUpdateKeys with the returned
// SignaturePriv before sending anything else (spec.md §4.2 update_key).
func (g *Group) UpdateKey() ([]byte, KeyPackagePrivate, error) {
	newSig, err := GenerateSignatureKeyPair()
	if err != nil {
		return nil, KeyPackagePrivate{}, fmt.Errorf("generate signature keypair: %w", err)
	}
	newInitPub, newInitPriv, err := GenerateHPKEKeyPair()
	if err != nil {
		return nil, KeyPackagePrivate{}, fmt.Errorf("generate hpke keypair: %w", err)
	}

	newCred := CredentialWithKey{Credential: g.credential.Credential, SignatureKey: newSig.Public}
	node := leafNode{credential: newCred, hpkePub: newInitPub}
	p := proposal{kind: proposalTypeUpdate, updateLeaf: g.myLeafIndex, updateNode: node}

	_, _, newGroupContext, newEpochSecret, commitObj, err := g.buildCommit([]proposal{p})
	if err != nil {
		return nil, KeyPackagePrivate{}, err
	}

	// Signed under the OLD key: the update being committed takes effect only
	// once this commit is merged, not before.
	pm := g.frameAndSignCommit(commitObj, newGroupContext.confirmedTranscriptHash, newEpochSecret)
	commitBytes, err := MarshalMlsMessage(MlsMessage{WireFormat: WireFormatPublicMessage, public: &pm})
	if err != nil {
		return nil, KeyPackagePrivate{}, fmt.Errorf("marshal commit: %w", err)
	}

	kp := KeyPackage{CipherSuite: g.cs, InitKey: newInitPub, Credential: newCred}
	kp.Signature = newSig.Sign(kp.tbs())

	return commitBytes, KeyPackagePrivate{Public: kp, SignaturePriv: newSig.Private, InitPriv: newInitPriv}, nil
}

// CreateApplicationMessage seals plaintext under the caller's own sender
// ratchet at the current epoch and generation, advancing the ratchet
// forward by one. spec.md §4.2 encrypt: "Fails with RemovedSelf if the
// caller's own leaf is blank in the current tree."
func (g *Group) CreateApplicationMessage(plaintext []byte) ([]byte, error) {
	if int(g.myLeafIndex) >= len(g.tree.leaves) || g.tree.leaves[g.myLeafIndex].blank {
		return nil, ErrRemovedSelf
	}
	if g.ownRatchet == nil {
		g.ownRatchet = newSenderRatchet(applicationSecret(g.epochSecret), uint32(g.myLeafIndex))
	}

	key, nonce := g.ownRatchet.ratchetKeyNonce()
	wire := privateMessage{
		groupID:    g.groupContext.groupID,
		epoch:      g.groupContext.epoch,
		sender:     g.myLeafIndex,
		generation: g.ownRatchet.generation,
	}
	ciphertext, err := aeadSeal(key, nonce, wire.aad(), plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal application message: %w", err)
	}
	wire.ciphertext = ciphertext
	g.ownRatchet.advance()

	return MarshalMlsMessage(MlsMessage{WireFormat: WireFormatPrivateMessage, private: &wire})
}

// UnmarshalAndProcessMessage decodes data and applies it to the group,
// returning the decrypted plaintext for application messages and nil for
// proposals/commits (which mutate the group but carry no plaintext of
// their own). Use ProcessMessage directly for the richer result (member
// list changes, content kind) the facade needs.
func (g *Group) UnmarshalAndProcessMessage(data []byte) ([]byte, error) {
	pm, err := g.ProcessMessage(data)
	if err != nil {
		return nil, err
	}
	return pm.Plaintext, nil
}

// ProcessMessage decodes and applies an incoming MlsMessage: it decrypts an
// application PrivateMessage, records a standalone proposal, or merges a
// commit (advancing the epoch, the tree, and every epoch-derived secret).
func (g *Group) ProcessMessage(data []byte) (*ProcessedMessage, error) {
	msg, err := UnmarshalMlsMessage(data)
	if err != nil {
		return nil, err
	}

	switch msg.WireFormat {
	case WireFormatPrivateMessage:
		return g.processPrivateMessage(msg.private)
	case WireFormatPublicMessage:
		return g.processPublicMessage(msg.public)
	default:
		return nil, ErrMalformed
	}
}

func (g *Group) processPrivateMessage(pm *privateMessage) (*ProcessedMessage, error) {
	if pm.epoch != g.groupContext.epoch {
		return nil, ErrWrongEpoch
	}
	if g.receiver == nil {
		g.receiver = newReceiverState(applicationSecret(g.epochSecret))
	}
	plaintext, err := g.receiver.open(uint32(pm.sender), pm.generation, pm.aad(), pm.ciphertext)
	if err != nil {
		return nil, err
	}
	return &ProcessedMessage{ContentType: ContentApplication, Plaintext: plaintext}, nil
}

func (g *Group) processPublicMessage(pm *publicMessage) (*ProcessedMessage, error) {
	if pm.content.epoch != g.groupContext.epoch {
		return nil, ErrWrongEpoch
	}

	switch pm.content.contentType {
	case ContentProposal:
		sender := pm.content.sender
		if int(sender) >= len(g.tree.leaves) || g.tree.leaves[sender].blank {
			return nil, ErrUnknownLeaf
		}
		if !VerifySignature(g.tree.leaves[sender].credential.SignatureKey, pm.content.tbs(), pm.content.signature) {
			return nil, ErrBadSignature
		}
		g.pendingProposals = append(g.pendingProposals, pendingProposal{proposal: pm.content.proposal, sender: sender})
		return &ProcessedMessage{ContentType: ContentProposal, Members: g.tree.members()}, nil
	case ContentCommit:
		return g.applyCommit(pm)
	default:
		return nil, ErrUnexpectedContent
	}
}

// stagedCommit holds the post-commit state computed by validating and
// applying a commit's proposals against a read-only snapshot of a group —
// the epoch isn't advanced, the tree isn't replaced, and no secret is
// rotated until a caller explicitly merges it. Shared by applyCommit
// (which merges the result) and VerifyCommit (which must not, spec.md
// §4.2: "they must not merge a staged commit").
type stagedCommit struct {
	tree                  ratchetTree
	groupContext          groupContext
	interimTranscriptHash []byte
	epochSecret           []byte
}

// stageCommit validates pm as a commit against g's current state and
// computes the resulting post-commit state, without mutating g.
func (g *Group) stageCommit(pm *publicMessage) (*stagedCommit, error) {
	commitObj := pm.content.commit
	var externalProp *proposal
	for i := range commitObj.proposals {
		if commitObj.proposals[i].kind == proposalTypeExternalInit {
			externalProp = &commitObj.proposals[i]
		}
	}

	newTree, _, err := applyProposals(g.tree, commitObj.proposals)
	if err != nil {
		return nil, err
	}

	newConfirmed := foldConfirmed(g.groupContext.confirmedTranscriptHash, *commitObj, pm.content.sender)
	newGroupContext := groupContext{
		groupID:                 g.groupContext.groupID,
		epoch:                   g.groupContext.epoch + 1,
		treeHash:                newTree.hash(),
		confirmedTranscriptHash: newConfirmed,
	}

	var newEpochSecret []byte
	if externalProp != nil {
		_, externalPriv, derr := deriveHPKEKeyPair(externalSeed(g.epochSecret))
		if derr != nil {
			return nil, fmt.Errorf("derive external keypair: %w", derr)
		}
		info := append([]byte("mls external commit "), g.groupContext.groupID...)
		commitSecret, oerr := hpkeOpen(externalPriv, externalProp.externalEnc, info, g.groupContext.groupID, externalProp.externalCT)
		if oerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalInit, oerr)
		}
		newEpochSecret = externalCommitEpochSecret(commitSecret, newGroupContext.bytes())

		// The committing joiner isn't present in the pre-commit tree; its
		// signature verifies against the leaf it occupies after the commit
		// applies.
		sender := pm.content.sender
		if int(sender) >= len(newTree.leaves) || newTree.leaves[sender].blank {
			return nil, ErrUnknownLeaf
		}
		if !VerifySignature(newTree.leaves[sender].credential.SignatureKey, pm.content.tbs(), pm.content.signature) {
			return nil, ErrBadSignature
		}
	} else {
		sender := pm.content.sender
		if int(sender) >= len(g.tree.leaves) || g.tree.leaves[sender].blank {
			return nil, ErrUnknownLeaf
		}
		if !VerifySignature(g.tree.leaves[sender].credential.SignatureKey, pm.content.tbs(), pm.content.signature) {
			return nil, ErrBadSignature
		}
		commitSecret := sha256Sum(commitObj.commitBytes())
		newEpochSecret = nextEpochSecret(g.epochSecret, commitSecret, newGroupContext.bytes())
	}

	expectedTag := computeConfirmationTag(newEpochSecret, newConfirmed)
	if subtle.ConstantTimeCompare(expectedTag, pm.confirmationTag) != 1 {
		return nil, ErrBadConfirmationTag
	}

	newInterim := sha256Sum(append(append([]byte{}, newConfirmed...), pm.content.signature...))
	return &stagedCommit{
		tree:                  newTree,
		groupContext:          newGroupContext,
		interimTranscriptHash: newInterim,
		epochSecret:           newEpochSecret,
	}, nil
}

func (g *Group) applyCommit(pm *publicMessage) (*ProcessedMessage, error) {
	staged, err := g.stageCommit(pm)
	if err != nil {
		return nil, err
	}

	g.tree = staged.tree
	g.groupContext = staged.groupContext
	g.interimTranscriptHash = staged.interimTranscriptHash
	g.epochSecret = staged.epochSecret
	g.pendingProposals = nil
	g.ownRatchet = nil
	g.receiver = nil

	return &ProcessedMessage{ContentType: ContentCommit, Members: staged.tree.members()}, nil
}

// VerifyCommit decodes data as a Commit-framed PublicMessage and runs the
// full validation pipeline — proposal application, signature verification,
// confirmation tag check — against a staged copy of g's state, without
// merging the result into g (spec.md §4.2: "they must not merge a staged
// commit"). Reports whether the staged commit validated; g's epoch, tree,
// and secrets are left exactly as they were on entry either way.
func (g *Group) VerifyCommit(data []byte) (bool, error) {
	msg, err := UnmarshalMlsMessage(data)
	if err != nil {
		return false, err
	}
	if msg.WireFormat != WireFormatPublicMessage || msg.public.content.contentType != ContentCommit {
		return false, ErrUnexpectedContent
	}
	if msg.public.content.epoch != g.groupContext.epoch {
		return false, ErrWrongEpoch
	}
	if _, err := g.stageCommit(msg.public); err != nil {
		return false, err
	}
	return true, nil
}

// ExportGroupInfo produces a signed snapshot of the group's current public
// state, publishable for out-of-band external joins (spec.md §4.2
// export_group_info).
func (g *Group) ExportGroupInfo() (GroupInfo, error) {
	if int(g.myLeafIndex) >= len(g.tree.leaves) || g.tree.leaves[g.myLeafIndex].blank {
		return GroupInfo{}, ErrRemovedSelf
	}
	extPub, _, err := deriveHPKEKeyPair(externalSeed(g.epochSecret))
	if err != nil {
		return GroupInfo{}, fmt.Errorf("derive external keypair: %w", err)
	}

	gi := GroupInfo{
		GroupID:                 g.groupContext.groupID,
		Epoch:                   g.groupContext.epoch,
		Tree:                    g.tree,
		ConfirmedTranscriptHash: g.groupContext.confirmedTranscriptHash,
		ExternalPub:             extPub,
		SignerLeaf:              g.myLeafIndex,
	}
	gi.Signature = signWith(g.signaturePriv, gi.tbs())
	return gi, nil
}

// buildCommit applies proposals to a clone of the group's tree and derives
// every value the committer needs to sign and frame the result, without
// mutating g. Shared by CreateWelcome, RemoveMembers, and UpdateKey.
func (g *Group) buildCommit(proposals []proposal) (newTree ratchetTree, addedLeaves []leafIndex, newGroupContext groupContext, newEpochSecret []byte, commitObj commit, err error) {
	nonce := make([]byte, 16)
	if _, rerr := rand.Read(nonce); rerr != nil {
		err = fmt.Errorf("generate commit nonce: %w", rerr)
		return
	}
	commitObj = commit{proposals: proposals, nonce: nonce}

	newTree, addedLeaves, err = applyProposals(g.tree, proposals)
	if err != nil {
		return
	}

	newConfirmed := foldConfirmed(g.groupContext.confirmedTranscriptHash, commitObj, g.myLeafIndex)
	newGroupContext = groupContext{
		groupID:                 g.groupContext.groupID,
		epoch:                   g.groupContext.epoch + 1,
		treeHash:                newTree.hash(),
		confirmedTranscriptHash: newConfirmed,
	}
	commitSecret := sha256Sum(commitObj.commitBytes())
	newEpochSecret = nextEpochSecret(g.epochSecret, commitSecret, newGroupContext.bytes())
	return
}

// frameAndSignCommit signs commitObj as the caller's own FramedContent and
// attaches the confirmation tag for newConfirmed/newEpochSecret.
func (g *Group) frameAndSignCommit(commitObj commit, newConfirmed, newEpochSecret []byte) publicMessage {
	fc := framedContent{
		groupID:     g.groupContext.groupID,
		epoch:       g.groupContext.epoch,
		sender:      g.myLeafIndex,
		contentType: ContentCommit,
		commit:      &commitObj,
	}
	fc.signature = signWith(g.signaturePriv, fc.tbs())
	return publicMessage{
		content:         fc,
		confirmationTag: computeConfirmationTag(newEpochSecret, newConfirmed),
	}
}

// applyProposals applies a sequence of Add/Remove/Update proposals to a
// clone of tree, returning the resulting tree and the leaf indices assigned
// to each Add proposal in order. ExternalInit proposals carry no direct
// tree effect; the accompanying Add proposal (see GroupFromExternalCommit)
// is what seats the joiner.
func applyProposals(tree ratchetTree, proposals []proposal) (ratchetTree, []leafIndex, error) {
	newTree := ratchetTree{leaves: append([]leafNode(nil), tree.leaves...)}
	var addedLeaves []leafIndex

	for _, p := range proposals {
		switch p.kind {
		case proposalTypeAdd:
			idx := newTree.addLeaf(leafNode{credential: p.addKeyPackage.Credential, hpkePub: p.addKeyPackage.InitKey})
			addedLeaves = append(addedLeaves, idx)
		case proposalTypeRemove:
			if err := newTree.removeLeaf(p.removeLeaf); err != nil {
				return ratchetTree{}, nil, err
			}
		case proposalTypeUpdate:
			if err := newTree.updateLeaf(p.updateLeaf, p.updateNode); err != nil {
				return ratchetTree{}, nil, err
			}
		case proposalTypeExternalInit:
			// no direct tree effect
		default:
			return ratchetTree{}, nil, ErrMalformed
		}
	}
	return newTree, addedLeaves, nil
}

// foldConfirmed derives the new confirmed transcript hash from the prior
// one, the commit that was just applied, and its sender.
func foldConfirmed(prevConfirmed []byte, c commit, sender leafIndex) []byte {
	b := cryptobyte.NewBuilder(nil)
	tlscodec.WriteOpaque(b, prevConfirmed)
	tlscodec.WriteOpaque(b, c.commitBytes())
	b.AddUint32(uint32(sender))
	encoded, _ := b.Bytes()
	return sha256Sum(encoded)
}

// computeConfirmationTag binds an epoch secret to a confirmed transcript
// hash, the value every PublicMessage carrying a commit must match.
func computeConfirmationTag(epochSecret, confirmedTranscriptHash []byte) []byte {
	return deriveSecret(confirmationKey(epochSecret), "confirm-tag", confirmedTranscriptHash, KeySize)
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
