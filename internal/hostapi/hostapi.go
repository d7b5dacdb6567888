// Package hostapi shapes internal/engine and internal/inspect into the
// exact request/response and blob-encoding conventions spec.md §6's
// external-interface table specifies: base64 for most operation outputs,
// raw bytes for the wire-level decode/verify/peek calls. Grounded on
// germtb-mlsgit/internal/cli, which wraps its internal/mls package the
// same way — string in, string/bool out, base64 at the boundary — for a
// CLI to call without touching protocol types directly.
package hostapi

import (
	"encoding/base64"
	"fmt"

	"github.com/takoserver/mlsengine/internal/engine"
	"github.com/takoserver/mlsengine/internal/inspect"
	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/internal/wire"
	"github.com/takoserver/mlsengine/mls"
)

// Host is the base64-speaking facade cmd/mlsctl (and any other embedder)
// drives. It owns one Engine; every method below maps 1:1 to a row of
// spec.md §6's operation table.
type Host struct {
	engine *engine.Engine
}

// New constructs a Host with a fresh, empty Engine.
func New() *Host {
	return &Host{engine: engine.New()}
}

func decodeB64(op, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, mlserr.New(mlserr.InvalidInput, op, err)
	}
	return b, nil
}

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// GenerateKeyPackageResult is generate_key_package's {key_package} shape.
type GenerateKeyPackageResult struct {
	KeyPackage string
}

// GenerateKeyPackage mints a standalone KeyPackage for identity.
func (h *Host) GenerateKeyPackage(identity string) (GenerateKeyPackageResult, error) {
	kp, err := h.engine.GenerateKeyPackage(identity)
	if err != nil {
		return GenerateKeyPackageResult{}, err
	}
	encoded, err := mls.MarshalKeyPackage(kp)
	if err != nil {
		return GenerateKeyPackageResult{}, mlserr.New(mlserr.CryptoFailure, "generate_key_package", err)
	}
	return GenerateKeyPackageResult{KeyPackage: encodeB64(encoded)}, nil
}

// HandleResult is the {handle, group_info} shape shared by create_group
// and join_with_welcome.
type HandleResult struct {
	Handle    uint32
	GroupInfo string
}

// CreateGroup constructs a brand-new single-member group for identity.
func (h *Host) CreateGroup(identity string) (HandleResult, error) {
	handle, gi, err := h.engine.CreateGroup(identity)
	if err != nil {
		return HandleResult{}, err
	}
	return h.packHandleResult(handle, gi, "create_group")
}

// JoinWithWelcome decodes a base64 Welcome and joins identity to the group
// it describes.
func (h *Host) JoinWithWelcome(identity, welcomeB64 string) (HandleResult, error) {
	raw, err := decodeB64("join_with_welcome", welcomeB64)
	if err != nil {
		return HandleResult{}, err
	}
	w, err := wire.DecodeWelcome(raw)
	if err != nil {
		return HandleResult{}, mlserr.New(mlserr.WireDecodeError, "join_with_welcome", err)
	}
	handle, gi, err := h.engine.JoinWithWelcome(identity, w)
	if err != nil {
		return HandleResult{}, err
	}
	return h.packHandleResult(handle, gi, "join_with_welcome")
}

func (h *Host) packHandleResult(handle uint32, gi mls.GroupInfo, op string) (HandleResult, error) {
	encoded, err := mls.MarshalGroupInfo(gi)
	if err != nil {
		return HandleResult{}, mlserr.New(mlserr.CryptoFailure, op, err)
	}
	return HandleResult{Handle: handle, GroupInfo: encodeB64(encoded)}, nil
}

// ExternalJoinResult is join_with_group_info's {handle, commit, group_info}
// shape.
type ExternalJoinResult struct {
	Handle    uint32
	Commit    string
	GroupInfo string
}

// JoinWithGroupInfo builds an external commit from a base64 GroupInfo and
// joins identity to the group it describes.
func (h *Host) JoinWithGroupInfo(identity, groupInfoB64 string) (ExternalJoinResult, error) {
	raw, err := decodeB64("join_with_group_info", groupInfoB64)
	if err != nil {
		return ExternalJoinResult{}, err
	}
	gi, err := wire.DecodeGroupInfo(raw)
	if err != nil {
		return ExternalJoinResult{}, mlserr.New(mlserr.WireDecodeError, "join_with_group_info", err)
	}
	handle, commitBytes, newGI, err := h.engine.JoinWithGroupInfo(identity, gi)
	if err != nil {
		return ExternalJoinResult{}, err
	}
	encoded, err := mls.MarshalGroupInfo(newGI)
	if err != nil {
		return ExternalJoinResult{}, mlserr.New(mlserr.CryptoFailure, "join_with_group_info", err)
	}
	return ExternalJoinResult{Handle: handle, Commit: encodeB64(commitBytes), GroupInfo: encodeB64(encoded)}, nil
}

// AddMembersResult is add_members' {commit, welcome} shape.
type AddMembersResult struct {
	Commit  string
	Welcome string
}

// AddMembers decodes each base64 KeyPackage, commits an Add proposal per
// recipient, and eagerly merges the caller's own commit.
func (h *Host) AddMembers(handle uint32, kpsB64 []string) (AddMembersResult, error) {
	if len(kpsB64) == 0 {
		return AddMembersResult{}, mlserr.New(mlserr.InvalidInput, "add_members", nil)
	}
	recipients := make([]mls.KeyPackage, len(kpsB64))
	for i, s := range kpsB64 {
		raw, err := decodeB64("add_members", s)
		if err != nil {
			return AddMembersResult{}, err
		}
		kp, err := wire.DecodeKeyPackage(raw)
		if err != nil {
			return AddMembersResult{}, mlserr.New(mlserr.WireDecodeError, "add_members", err)
		}
		recipients[i] = kp
	}
	commitBytes, welcome, err := h.engine.AddMembers(handle, recipients)
	if err != nil {
		return AddMembersResult{}, err
	}
	welcomeBytes, err := mls.MarshalWelcome(welcome)
	if err != nil {
		return AddMembersResult{}, mlserr.New(mlserr.CryptoFailure, "add_members", err)
	}
	return AddMembersResult{Commit: encodeB64(commitBytes), Welcome: encodeB64(welcomeBytes)}, nil
}

// RemoveMembers commits the removal of leaves and eagerly merges the
// caller's own commit.
func (h *Host) RemoveMembers(handle uint32, leaves []uint32) (string, error) {
	commitBytes, err := h.engine.RemoveMembers(handle, leaves)
	if err != nil {
		return "", err
	}
	return encodeB64(commitBytes), nil
}

// UpdateKeyResult is update_key's {commit, key_package} shape.
type UpdateKeyResult struct {
	Commit     string
	KeyPackage string
}

// UpdateKey rotates the caller's own leaf key material and eagerly merges
// the resulting commit.
func (h *Host) UpdateKey(handle uint32) (UpdateKeyResult, error) {
	commitBytes, kp, err := h.engine.UpdateKey(handle)
	if err != nil {
		return UpdateKeyResult{}, err
	}
	encoded, err := mls.MarshalKeyPackage(kp)
	if err != nil {
		return UpdateKeyResult{}, mlserr.New(mlserr.CryptoFailure, "update_key", err)
	}
	return UpdateKeyResult{Commit: encodeB64(commitBytes), KeyPackage: encodeB64(encoded)}, nil
}

// ProcessCommit decodes raw (not base64) commit bytes and merges them,
// matching spec.md §6's "raw in" convention for this operation.
func (h *Host) ProcessCommit(handle uint32, raw []byte) ([]string, error) {
	return h.engine.ProcessCommit(handle, raw)
}

// ProcessProposal decodes raw proposal bytes and records them.
func (h *Host) ProcessProposal(handle uint32, raw []byte) ([]string, error) {
	return h.engine.ProcessProposal(handle, raw)
}

// Encrypt seals plaintext and returns the base64-wrapped ciphertext.
func (h *Host) Encrypt(handle uint32, plaintext []byte) (string, error) {
	out, err := h.engine.Encrypt(handle, plaintext)
	if err != nil {
		return "", err
	}
	return encodeB64(out), nil
}

// Decrypt base64-decodes an inbound message and opens it as an application
// message.
func (h *Host) Decrypt(handle uint32, messageB64 string) ([]byte, error) {
	raw, err := decodeB64("decrypt", messageB64)
	if err != nil {
		return nil, err
	}
	return h.engine.Decrypt(handle, raw)
}

// GetGroupMembers returns the current member identities.
func (h *Host) GetGroupMembers(handle uint32) ([]string, error) {
	return h.engine.GetGroupMembers(handle)
}

// ExportGroupInfo returns the base64-wrapped, TLS-encoded GroupInfo.
func (h *Host) ExportGroupInfo(handle uint32) (string, error) {
	gi, err := h.engine.ExportGroupInfo(handle)
	if err != nil {
		return "", err
	}
	encoded, err := mls.MarshalGroupInfo(gi)
	if err != nil {
		return "", mlserr.New(mlserr.CryptoFailure, "export_group_info", err)
	}
	return encodeB64(encoded), nil
}

// FreeGroup removes handle from the registry.
func (h *Host) FreeGroup(handle uint32) error {
	return h.engine.FreeGroup(handle)
}

// PeekWire classifies raw bytes by wire format (spec.md §6: "raw" blob
// encoding for peek_wire).
func (h *Host) PeekWire(raw []byte) string {
	return string(inspect.PeekWire(raw))
}

// DecodeKeyPackage returns a hex-free raw-byte signature public key for
// raw, TLS-encoded KeyPackage bytes.
func (h *Host) DecodeKeyPackage(raw []byte) ([]byte, error) {
	key, err := inspect.DecodeKeyPackage(raw)
	if err != nil {
		return nil, err
	}
	return []byte(key), nil
}

// DecodeWelcome reports whether raw parses as a Welcome.
func (h *Host) DecodeWelcome(raw []byte) (bool, error) {
	return inspect.DecodeWelcome(raw)
}

// DecodeGroupInfo returns the group id carried by raw, TLS-encoded
// GroupInfo bytes.
func (h *Host) DecodeGroupInfo(raw []byte) ([]byte, error) {
	return inspect.DecodeGroupInfo(raw)
}

// DecodePublicMessage returns the epoch carried by raw PublicMessage bytes.
func (h *Host) DecodePublicMessage(raw []byte) (uint64, error) {
	return inspect.DecodePublicMessage(raw)
}

// DecodePrivateMessage returns the epoch carried by raw PrivateMessage
// bytes.
func (h *Host) DecodePrivateMessage(raw []byte) (uint64, error) {
	return inspect.DecodePrivateMessage(raw)
}

// VerifyKeyPackage verifies raw KeyPackage bytes, optionally asserting its
// credential identity.
func (h *Host) VerifyKeyPackage(raw []byte, wantIdentity *string) (bool, error) {
	return inspect.VerifyKeyPackage(raw, wantIdentity)
}

// VerifyGroupInfo verifies raw GroupInfo bytes under the fixed ciphersuite.
func (h *Host) VerifyGroupInfo(raw []byte) (bool, error) {
	return inspect.VerifyGroupInfo(raw)
}

// VerifyWelcome parses raw Welcome bytes without cryptographic
// verification (spec.md §9: "the most recent source revision only
// parses").
func (h *Host) VerifyWelcome(raw []byte) (bool, error) {
	return inspect.VerifyWelcome(raw)
}

// VerifyCommit runs the full commit-validation pipeline against handle's
// group and reports success, without merging the commit (spec.md §4.2,
// §9: the stateful verifiers "must not merge a staged commit").
func (h *Host) VerifyCommit(handle uint32, raw []byte) (bool, error) {
	return inspect.VerifyCommit(h.engine, handle, raw)
}

// VerifyPrivateMessage runs the full decrypt pipeline against handle's
// group and reports success. Unlike VerifyCommit this may still mutate
// processing state (e.g. replay guards) — spec.md §4.2 permits that for
// this call, only forbidding a commit merge.
func (h *Host) VerifyPrivateMessage(handle uint32, raw []byte) (bool, error) {
	return inspect.VerifyPrivateMessage(h.engine, handle, raw)
}

// ErrString renders err as "Kind: message" when it's an *mlserr.Error, or
// its plain message otherwise, so a caller need not reach into the error's
// concrete type itself. Nothing in the module calls it; cmd/mlsctl prints
// errors directly.
func ErrString(err error) string {
	if me, ok := err.(*mlserr.Error); ok {
		return fmt.Sprintf("%s: %s", me.Kind, me.Error())
	}
	return err.Error()
}
