// Package engine implements spec.md §4.2's GroupEngine: the host-callable
// operation surface over mls.Group, keyed by the u32 handles
// internal/registry issues. Grounded on germtb-mlsgit's internal/mls
// package, which wraps a protocol library behind a handle-free struct
// method set; engine adds the handle indirection spec.md §4.3 requires
// (object references can't cross a host ABI) and the error-kind mapping
// spec.md §7 specifies.
package engine

import (
	"errors"

	"github.com/takoserver/mlsengine/internal/credential"
	"github.com/takoserver/mlsengine/internal/keypackage"
	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/internal/registry"
	"github.com/takoserver/mlsengine/mls"
)

// ciphersuite is the one fixed suite spec.md §3 names:
// MLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519.
const ciphersuite = mls.CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

// GroupHandle is the registry's payload: the live protocol group plus the
// signer/credential pair the Rust source's GroupHandle struct also carried
// alongside it (group, signer, credential), reproduced field-for-field.
type GroupHandle struct {
	group      *mls.Group
	signer     mls.SignatureKeyPair
	credential mls.CredentialWithKey
}

// Engine is one process-wide GroupEngine instance: a handle registry and
// nothing else. Spec.md §5: "the handle table is the sole shared mutable
// state."
type Engine struct {
	reg *registry.Registry[*GroupHandle]
}

// New constructs an empty Engine.
func New() *Engine {
	return &Engine{reg: registry.New[*GroupHandle]()}
}

// classify maps an mls-package sentinel error onto spec.md §7's Kind
// taxonomy. Unrecognized errors (plain wrapped RNG, HPKE or AEAD failures)
// map to CryptoFailure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *mlserr.Error
	if errors.As(err, &me) {
		return me
	}
	switch {
	case errors.Is(err, mls.ErrEmptyProposalSet):
		return mlserr.New(mlserr.InvalidInput, op, err)
	case errors.Is(err, mls.ErrMalformed):
		return mlserr.New(mlserr.WireDecodeError, op, err)
	case errors.Is(err, mls.ErrUnknownLeaf):
		return mlserr.New(mlserr.UnknownLeaf, op, err)
	case errors.Is(err, mls.ErrUnexpectedContent):
		return mlserr.New(mlserr.UnexpectedMessageKind, op, err)
	case errors.Is(err, mls.ErrWrongCiphersuite),
		errors.Is(err, mls.ErrWrongEpoch),
		errors.Is(err, mls.ErrBadSignature),
		errors.Is(err, mls.ErrBadConfirmationTag),
		errors.Is(err, mls.ErrReplay),
		errors.Is(err, mls.ErrRemovedSelf),
		errors.Is(err, mls.ErrIdentityMismatch),
		errors.Is(err, mls.ErrExternalInit):
		return mlserr.New(mlserr.ProtocolError, op, err)
	default:
		return mlserr.New(mlserr.CryptoFailure, op, err)
	}
}

// mintKeyPackage builds a fresh, signed KeyPackagePrivate around an
// already-minted credential.Identity: a new HPKE init keypair, signed with
// the identity's own signer rather than one GenerateKeyPairPackage would
// mint internally. This keeps the signer the engine stores in GroupHandle
// identical to the one bound into the group (mls.Group signs every commit
// with exactly the SignaturePriv handed to it at construction time).
func mintKeyPackage(id credential.Identity) (mls.KeyPackagePrivate, error) {
	initPub, initPriv, err := mls.GenerateHPKEKeyPair()
	if err != nil {
		return mls.KeyPackagePrivate{}, err
	}
	kp := mls.KeyPackage{CipherSuite: ciphersuite, InitKey: initPub, Credential: id.Credential}
	kp.Signature = id.Signer.Sign(kp.Tbs())
	return mls.KeyPackagePrivate{Public: kp, SignaturePriv: id.Signer.Private, InitPriv: initPriv}, nil
}

// GenerateKeyPackage mints a standalone KeyPackage for identity; the
// private halves are discarded (spec.md §4.1).
func (e *Engine) GenerateKeyPackage(identity string) (mls.KeyPackage, error) {
	kp, err := keypackage.Generate(ciphersuite, identity)
	if err != nil {
		return mls.KeyPackage{}, classify("generate_key_package", err)
	}
	return kp, nil
}

// CreateGroup mints a fresh keypair + credential for identity and
// constructs a brand-new single-member group at epoch 0.
func (e *Engine) CreateGroup(identity string) (uint32, mls.GroupInfo, error) {
	id, err := credential.New("create_group", identity)
	if err != nil {
		return 0, mls.GroupInfo{}, err
	}
	kpp, err := mintKeyPackage(id)
	if err != nil {
		return 0, mls.GroupInfo{}, classify("create_group", err)
	}
	groupID, err := mls.RandomGroupID()
	if err != nil {
		return 0, mls.GroupInfo{}, classify("create_group", err)
	}

	g, err := mls.CreateGroup(groupID, kpp)
	if err != nil {
		return 0, mls.GroupInfo{}, classify("create_group", err)
	}

	gi, err := g.ExportGroupInfo()
	if err != nil {
		return 0, mls.GroupInfo{}, classify("create_group", err)
	}

	handle, err := e.reg.Insert(&GroupHandle{group: g, signer: id.Signer, credential: id.Credential})
	if err != nil {
		return 0, mls.GroupInfo{}, err
	}
	return handle, gi, nil
}

// JoinWithWelcome joins from an already-decoded Welcome and lands the caller at the post-commit
// epoch immediately (spec.md §4.2 join_with_welcome).
func (e *Engine) JoinWithWelcome(identity string, welcome mls.Welcome) (uint32, mls.GroupInfo, error) {
	id, err := credential.New("join_with_welcome", identity)
	if err != nil {
		return 0, mls.GroupInfo{}, err
	}
	kpp, err := mintKeyPackage(id)
	if err != nil {
		return 0, mls.GroupInfo{}, classify("join_with_welcome", err)
	}

	g, err := mls.GroupFromWelcome(welcome, kpp)
	if err != nil {
		return 0, mls.GroupInfo{}, classify("join_with_welcome", err)
	}

	gi, err := g.ExportGroupInfo()
	if err != nil {
		return 0, mls.GroupInfo{}, classify("join_with_welcome", err)
	}

	handle, err := e.reg.Insert(&GroupHandle{group: g, signer: id.Signer, credential: id.Credential})
	if err != nil {
		return 0, mls.GroupInfo{}, err
	}
	return handle, gi, nil
}

// JoinWithGroupInfo builds an external commit from a published GroupInfo,
// registers the joiner's new group, and returns the commit existing
// members must process (spec.md §4.2 join_with_group_info).
func (e *Engine) JoinWithGroupInfo(identity string, gi mls.GroupInfo) (uint32, []byte, mls.GroupInfo, error) {
	id, err := credential.New("join_with_group_info", identity)
	if err != nil {
		return 0, nil, mls.GroupInfo{}, err
	}
	kpp, err := mintKeyPackage(id)
	if err != nil {
		return 0, nil, mls.GroupInfo{}, classify("join_with_group_info", err)
	}

	g, commitBytes, err := mls.GroupFromExternalCommit(gi, kpp)
	if err != nil {
		return 0, nil, mls.GroupInfo{}, classify("join_with_group_info", err)
	}

	newGI, err := g.ExportGroupInfo()
	if err != nil {
		return 0, nil, mls.GroupInfo{}, classify("join_with_group_info", err)
	}

	handle, err := e.reg.Insert(&GroupHandle{group: g, signer: id.Signer, credential: id.Credential})
	if err != nil {
		return 0, nil, mls.GroupInfo{}, err
	}
	return handle, commitBytes, newGI, nil
}

// AddMembers builds and eagerly self-merges an Add commit for recipients,
// returning the commit and Welcome other operations distribute (spec.md
// §4.2 add_members: "requires eager merge of own outgoing commits").
func (e *Engine) AddMembers(handle uint32, recipients []mls.KeyPackage) ([]byte, mls.Welcome, error) {
	if len(recipients) == 0 {
		return nil, mls.Welcome{}, mlserr.New(mlserr.InvalidInput, "add_members", nil)
	}
	var commitBytes []byte
	var welcome mls.Welcome
	err := e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		var err error
		welcome, commitBytes, err = gh.group.CreateWelcome(recipients)
		if err != nil {
			return err
		}
		_, err = gh.group.UnmarshalAndProcessMessage(commitBytes)
		return err
	})
	if err != nil {
		return nil, mls.Welcome{}, classify("add_members", err)
	}
	return commitBytes, welcome, nil
}

// RemoveMembers commits the removal of leaves and eagerly self-merges
// (spec.md §4.2 remove_members).
func (e *Engine) RemoveMembers(handle uint32, leaves []uint32) ([]byte, error) {
	var commitBytes []byte
	err := e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		var err error
		commitBytes, err = gh.group.RemoveMembers(leaves)
		if err != nil {
			return err
		}
		_, err = gh.group.UnmarshalAndProcessMessage(commitBytes)
		return err
	})
	if err != nil {
		return nil, classify("remove_members", err)
	}
	return commitBytes, nil
}

// UpdateKey rotates the caller's own leaf key material, eagerly self-merges
// the resulting commit, and adopts the new signature private key (spec.md
// §4.2 update_key).
func (e *Engine) UpdateKey(handle uint32) ([]byte, mls.KeyPackage, error) {
	var commitBytes []byte
	var newKP mls.KeyPackage
	err := e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		commit, kpp, err := gh.group.UpdateKey()
		if err != nil {
			return err
		}
		if _, err := gh.group.UnmarshalAndProcessMessage(commit); err != nil {
			return err
		}
		gh.group.AdoptSelfUpdateKeys(kpp.SignaturePriv)
		gh.signer = mls.SignatureKeyPair{Public: kpp.Public.Credential.SignatureKey, Private: kpp.SignaturePriv}
		gh.credential = kpp.Public.Credential
		commitBytes, newKP = commit, kpp.Public
		return nil
	})
	if err != nil {
		return nil, mls.KeyPackage{}, classify("update_key", err)
	}
	return commitBytes, newKP, nil
}

// decodeContentKind peeks data's content kind without touching any group
// state, so callers can reject the wrong message kind before a mutating
// operation runs (spec.md §4.2/§7: "all protocol errors ... leave the
// group in its pre-call state" — ProcessMessage itself only classifies
// content after applying it, so every content-kind check here must happen
// before a WithLocked call reaches ProcessMessage, not after).
func decodeContentKind(data []byte) (mls.ContentType, error) {
	msg, err := mls.UnmarshalMlsMessage(data)
	if err != nil {
		return 0, err
	}
	return msg.ContentType(), nil
}

// ProcessCommit applies an inbound commit, advancing the group's epoch and
// tree, and returns the post-merge member list (spec.md §4.2
// process_commit). The content kind is checked before the registry is
// touched, so a non-commit message is rejected without mutating anything.
func (e *Engine) ProcessCommit(handle uint32, data []byte) ([]string, error) {
	kind, err := decodeContentKind(data)
	if err != nil {
		return nil, classify("process_commit", err)
	}
	if kind != mls.ContentCommit {
		return nil, mlserr.New(mlserr.UnexpectedMessageKind, "process_commit", nil)
	}

	var members []string
	err = e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		pm, err := gh.group.ProcessMessage(data)
		if err != nil {
			return err
		}
		members = pm.Members
		return nil
	})
	if err != nil {
		return nil, classify("process_commit", err)
	}
	return members, nil
}

// ProcessProposal ingests a standalone proposal with no epoch change
// (spec.md §4.2 process_proposal). The content kind is checked before the
// registry is touched, so a commit handed to this operation is rejected
// without being merged.
func (e *Engine) ProcessProposal(handle uint32, data []byte) ([]string, error) {
	kind, err := decodeContentKind(data)
	if err != nil {
		return nil, classify("process_proposal", err)
	}
	if kind != mls.ContentProposal {
		return nil, mlserr.New(mlserr.UnexpectedMessageKind, "process_proposal", nil)
	}

	var members []string
	err = e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		if _, err := gh.group.ProcessMessage(data); err != nil {
			return err
		}
		members = gh.group.Members()
		return nil
	})
	if err != nil {
		return nil, classify("process_proposal", err)
	}
	return members, nil
}

// Encrypt seals plaintext under the current epoch's application secret
// (spec.md §4.2 encrypt).
func (e *Engine) Encrypt(handle uint32, plaintext []byte) ([]byte, error) {
	var out []byte
	err := e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		var err error
		out, err = gh.group.CreateApplicationMessage(plaintext)
		return err
	})
	if err != nil {
		return nil, classify("encrypt", err)
	}
	return out, nil
}

// Decrypt decodes and opens an inbound application message, rejecting any
// other content kind with NotApplicationMessage before the registry is
// touched — a commit or proposal handed to decrypt is never merged or
// recorded (spec.md §4.2 decrypt).
func (e *Engine) Decrypt(handle uint32, data []byte) ([]byte, error) {
	kind, err := decodeContentKind(data)
	if err != nil {
		return nil, classify("decrypt", err)
	}
	if kind != mls.ContentApplication {
		return nil, mlserr.New(mlserr.NotApplicationMessage, "decrypt", nil)
	}

	var plaintext []byte
	err = e.reg.WithLocked(handle, func(gh *GroupHandle) error {
		pm, err := gh.group.ProcessMessage(data)
		if err != nil {
			return err
		}
		plaintext = pm.Plaintext
		return nil
	})
	if err != nil {
		return nil, classify("decrypt", err)
	}
	return plaintext, nil
}

// GetGroupMembers returns the current member identities in leaf order
// (spec.md §4.2 get_group_members).
func (e *Engine) GetGroupMembers(handle uint32) ([]string, error) {
	gh, err := e.reg.Get(handle)
	if err != nil {
		return nil, err
	}
	return gh.group.Members(), nil
}

// ExportGroupInfo produces a signed snapshot of the group's current public
// state (spec.md §4.2 export_group_info).
func (e *Engine) ExportGroupInfo(handle uint32) (mls.GroupInfo, error) {
	gh, err := e.reg.Get(handle)
	if err != nil {
		return mls.GroupInfo{}, err
	}
	gi, err := gh.group.ExportGroupInfo()
	if err != nil {
		return mls.GroupInfo{}, classify("export_group_info", err)
	}
	return gi, nil
}

// FreeGroup removes handle from the registry (spec.md §4.2 free_group).
func (e *Engine) FreeGroup(handle uint32) error {
	return e.reg.Remove(handle)
}

// VerifyCommit runs the full process_commit validation pipeline against
// handle's group without merging the result (spec.md §4.2: the stateful
// verifiers "must not merge a staged commit"). Uses reg.Get rather than
// WithLocked since mls.Group.VerifyCommit never mutates the group it's
// called on.
func (e *Engine) VerifyCommit(handle uint32, data []byte) (bool, error) {
	gh, err := e.reg.Get(handle)
	if err != nil {
		return false, err
	}
	ok, err := gh.group.VerifyCommit(data)
	if err != nil {
		return false, classify("verify_commit", err)
	}
	return ok, nil
}
