package mls

// CipherSuite identifies the fixed algorithm bundle a group runs under.
// RFC 9420 assigns MLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519 the
// registry value 0x0001; germtb-mlsgit's config package carries the same
// constant (MLSCiphersuiteID) for the identical reason.
type CipherSuite uint16

// CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519 is the only
// ciphersuite this package implements. spec.md §3 fixes the ciphersuite at
// build time; there is no negotiation.
const CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519 CipherSuite = 0x0001

// KeySize is the symmetric secret size for this ciphersuite (SHA-256 output).
const KeySize = 32

// NonceSize is the AES-128-GCM nonce size.
const NonceSize = 12

// String renders the ciphersuite name for diagnostics.
func (cs CipherSuite) String() string {
	if cs == CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519 {
		return "MLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519"
	}
	return "unknown"
}

// Valid reports whether cs is the one ciphersuite this library supports.
func (cs CipherSuite) Valid() bool {
	return cs == CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519
}
