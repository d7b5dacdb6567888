// Package testrand provides a deterministic crypto/rand.Reader override
// for tests that need reproducible keys, nonces, and group ids. Grounded
// on _examples/other_examples's mls test harness, which swaps
// crypto/rand.Reader for a seeded deterministic stream around each
// protocol-level test fixture via harness.DeterministicRNGWithSeed /
// harness.OverrideCryptoRand; this package reproduces that shape for our
// own _test.go files. Test-only: nothing under mls/ or internal/engine
// imports this package.
package testrand

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

// deterministicReader is a simple counter-driven byte stream: seeded with
// a fixed starting state, it never repeats within the lifetime a test
// needs, and two readers constructed with the same seed produce identical
// output — the property DeterministicRNGWithSeed exists for.
type deterministicReader struct {
	state uint64
}

// DeterministicRNG returns a deterministic stream seeded from a fixed
// constant, matching harness.DeterministicRNG()'s zero-argument form.
func DeterministicRNG() io.Reader {
	return DeterministicRNGWithSeed(1)
}

// DeterministicRNGWithSeed returns a deterministic byte stream seeded by
// seed. The same seed always produces the same sequence of bytes.
func DeterministicRNGWithSeed(seed uint64) io.Reader {
	if seed == 0 {
		seed = 1
	}
	return &deterministicReader{state: seed}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		r.state = r.state*6364136223846793005 + 1442695040888963407
		var block [8]byte
		binary.LittleEndian.PutUint64(block[:], r.state)
		n := copy(p[i:], block[:])
		_ = n
	}
	return len(p), nil
}

// OverrideCryptoRand replaces crypto/rand.Reader with rng for the
// duration the caller holds, returning a restore func that puts the
// original reader back. Tests should always defer the restore.
func OverrideCryptoRand(rng io.Reader) (restore func()) {
	original := rand.Reader
	rand.Reader = rng
	return func() { rand.Reader = original }
}

// RandomBytes reads n deterministic bytes from rng, matching
// harness.RandomBytes's convenience signature.
func RandomBytes(rng io.Reader, n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rng, b); err != nil {
		panic(err)
	}
	return b
}
