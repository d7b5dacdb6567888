package mls

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// senderRatchet advances a per-leaf application secret chain one generation
// at a time, deriving an AES-128-GCM key+nonce for each generation and never
// stepping backwards. Grounded on germtb-mlsgit/internal/crypto/symmetric.go's
// AESGCMEncrypt/AESGCMDecrypt, adapted to a ratcheting key schedule instead
// of a single static file key.
type senderRatchet struct {
	leafIndex  uint32
	secret     []byte
	generation uint32
}

func newSenderRatchet(appSecret []byte, leafIndex uint32) *senderRatchet {
	return &senderRatchet{
		leafIndex: leafIndex,
		secret:    senderRatchetSeed(appSecret, leafIndex),
	}
}

// ratchetKeyNonce derives the (key, nonce) for the ratchet's current
// generation without advancing it.
func (r *senderRatchet) ratchetKeyNonce() (key, nonce []byte) {
	var gen [4]byte
	binary.BigEndian.PutUint32(gen[:], r.generation)
	key = deriveSecret(r.secret, "key", gen[:], 16)
	nonce = deriveSecret(r.secret, "nonce", gen[:], NonceSize)
	return key, nonce
}

// advance steps the ratchet forward one generation.
func (r *senderRatchet) advance() {
	r.secret = deriveSecret(r.secret, "ratchet", nil, KeySize)
	r.generation++
}

func aeadSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func aeadOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return pt, nil
}

// receiverState tracks, per sender leaf, the set of generations consumed so
// far so that a replayed ciphertext is rejected (spec.md §8: "Replaying a
// previously decrypted message → ProtocolError").
type receiverState struct {
	appSecret []byte
	seen      map[uint32]map[uint32]bool // leafIndex -> generation -> consumed
}

func newReceiverState(appSecret []byte) *receiverState {
	return &receiverState{appSecret: appSecret, seen: map[uint32]map[uint32]bool{}}
}

// open decrypts a ciphertext sent by leafIndex at generation, rejecting
// replays and deriving the ratchet forward only as far as needed.
func (rs *receiverState) open(leafIndex, generation uint32, aad, ciphertext []byte) ([]byte, error) {
	byLeaf, ok := rs.seen[leafIndex]
	if !ok {
		byLeaf = map[uint32]bool{}
		rs.seen[leafIndex] = byLeaf
	}
	if byLeaf[generation] {
		return nil, ErrReplay
	}

	ratchet := newSenderRatchet(rs.appSecret, leafIndex)
	for ratchet.generation < generation {
		ratchet.advance()
	}
	key, nonce := ratchet.ratchetKeyNonce()
	pt, err := aeadOpen(key, nonce, aad, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfirmationTag, err)
	}
	byLeaf[generation] = true
	return pt, nil
}
