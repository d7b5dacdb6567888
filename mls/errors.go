package mls

import "errors"

// Sentinel errors returned by the protocol library. The facade in
// internal/engine maps these onto the spec's error Kind taxonomy; package
// mls itself stays free of any host-facing error vocabulary.
var (
	ErrUnknownLeaf          = errors.New("mls: unknown leaf index")
	ErrEmptyProposalSet     = errors.New("mls: empty proposal set")
	ErrWrongEpoch           = errors.New("mls: message epoch does not match group epoch")
	ErrBadSignature         = errors.New("mls: signature verification failed")
	ErrBadConfirmationTag   = errors.New("mls: confirmation tag mismatch")
	ErrUnexpectedContent    = errors.New("mls: wire content is not of the expected kind")
	ErrReplay               = errors.New("mls: generation already consumed (replay)")
	ErrRemovedSelf          = errors.New("mls: own leaf has been removed from the group")
	ErrMalformed            = errors.New("mls: malformed wire structure")
	ErrWrongCiphersuite     = errors.New("mls: ciphersuite mismatch")
	ErrIdentityMismatch     = errors.New("mls: credential identity mismatch")
	ErrExternalInit         = errors.New("mls: external commit secret could not be recovered")
)
