// Package inspect implements spec.md §4.2's Inspector/Verifier: a set of
// pure decoders plus signature-checking verifiers over opaque wire bytes,
// and two stateful checks that run the full processing pipeline against a
// live group — VerifyCommit validates without merging, VerifyPrivateMessage
// may still advance replay state. Grounded on internal/wire for the decode
// step; the verify_* functions are new glue spec.md §4.2 requires but no
// single example repo shows in this exact shape.
package inspect

import (
	"github.com/takoserver/mlsengine/internal/engine"
	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/internal/wire"
	"github.com/takoserver/mlsengine/mls"
)

// PeekWire classifies data by wire format without consuming or mutating
// anything (spec.md §4.2 peek_wire).
func PeekWire(data []byte) wire.Kind {
	return wire.Peek(data)
}

// DecodeKeyPackage returns the raw signature public key bytes carried by a
// TLS-encoded KeyPackage (spec.md §4.2 decode_key_package).
func DecodeKeyPackage(data []byte) (mls.SignaturePublicKey, error) {
	kp, err := wire.DecodeKeyPackage(data)
	if err != nil {
		return nil, mlserr.New(mlserr.WireDecodeError, "decode_key_package", err)
	}
	return kp.Credential.SignatureKey, nil
}

// DecodeWelcome reports only that data parses as a Welcome (spec.md §4.2
// decode_welcome: "{ok}").
func DecodeWelcome(data []byte) (bool, error) {
	if _, err := wire.DecodeWelcome(data); err != nil {
		return false, mlserr.New(mlserr.WireDecodeError, "decode_welcome", err)
	}
	return true, nil
}

// DecodeGroupInfo returns the group id carried by a TLS-encoded GroupInfo
// (spec.md §4.2 decode_group_info).
func DecodeGroupInfo(data []byte) ([]byte, error) {
	gi, err := wire.DecodeGroupInfo(data)
	if err != nil {
		return nil, mlserr.New(mlserr.WireDecodeError, "decode_group_info", err)
	}
	return gi.GroupID, nil
}

// DecodePublicMessage returns the epoch carried by a TLS-encoded
// PublicMessage (spec.md §4.2 decode_public_message).
func DecodePublicMessage(data []byte) (uint64, error) {
	return decodeMessageEpoch("decode_public_message", data, mls.WireFormatPublicMessage)
}

// DecodePrivateMessage returns the epoch carried by a TLS-encoded
// PrivateMessage (spec.md §4.2 decode_private_message).
func DecodePrivateMessage(data []byte) (uint64, error) {
	return decodeMessageEpoch("decode_private_message", data, mls.WireFormatPrivateMessage)
}

func decodeMessageEpoch(op string, data []byte, want mls.WireFormat) (uint64, error) {
	msg, err := wire.DecodeMessage(data)
	if err != nil {
		return 0, mlserr.New(mlserr.WireDecodeError, op, err)
	}
	if msg.WireFormat != want {
		return 0, mlserr.New(mlserr.UnexpectedMessageKind, op, nil)
	}
	return msg.Epoch(), nil
}

// VerifyKeyPackage parses and verifies a KeyPackage's self-signature,
// optionally asserting its credential identity (spec.md §4.2
// verify_key_package). Parse failures are reported as (false, error); a
// structurally valid package that simply fails verification reports
// (false, nil).
func VerifyKeyPackage(data []byte, wantIdentity *string) (bool, error) {
	kp, err := wire.DecodeKeyPackage(data)
	if err != nil {
		return false, mlserr.New(mlserr.WireDecodeError, "verify_key_package", err)
	}
	return kp.Verify(wantIdentity), nil
}

// VerifyGroupInfo parses and verifies a GroupInfo's signature under the
// fixed ciphersuite (spec.md §4.2 verify_group_info).
func VerifyGroupInfo(data []byte) (bool, error) {
	gi, err := wire.DecodeGroupInfo(data)
	if err != nil {
		return false, mlserr.New(mlserr.WireDecodeError, "verify_group_info", err)
	}
	return gi.Verify(), nil
}

// VerifyWelcome parses only — full verification needs the recipient's key
// material, which a stateless check doesn't have (spec.md §4.2
// verify_welcome; §9 documents this as matching the source's behavior).
func VerifyWelcome(data []byte) (bool, error) {
	if _, err := wire.DecodeWelcome(data); err != nil {
		return false, mlserr.New(mlserr.WireDecodeError, "verify_welcome", err)
	}
	return true, nil
}

// VerifyCommit runs the full commit-validation pipeline against the live
// group at handle — proposal application, signature verification,
// confirmation tag check — and reports success, without merging the
// result (spec.md §4.2: the stateful verifiers "must not merge a staged
// commit"). handle's epoch, tree, and secrets are unchanged either way.
func VerifyCommit(e *engine.Engine, handle uint32, data []byte) (bool, error) {
	ok, err := e.VerifyCommit(handle, data)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// VerifyPrivateMessage runs the full decrypt pipeline against the live
// group at handle and reports success. Unlike VerifyCommit it is not free
// of side effects: a successful decrypt records the consumed generation in
// the group's replay state.
func VerifyPrivateMessage(e *engine.Engine, handle uint32, data []byte) (bool, error) {
	_, err := e.Decrypt(handle, data)
	if err != nil {
		return false, nil
	}
	return true, nil
}
