package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake2_128Size is the digest length prepended by Blake2_128Concat.
const Blake2_128Size = 16

// Blake2_128Concat returns blake2b-128(data) followed by data itself. Keys
// hashed this way spread evenly across the keyspace while the original key
// stays recoverable from the suffix.
func Blake2_128Concat(data []byte) []byte {
	h, err := blake2b.New(Blake2_128Size, nil)
	if err != nil {
		// only fails for out-of-range sizes or oversized keys
		panic(err)
	}
	h.Write(data)
	return append(h.Sum(nil), data...)
}
