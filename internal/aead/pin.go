package aead

import (
	"crypto/sha256"
	"crypto/subtle"
)

// pinSaltLabel is the protocol-constant label mixed into every PIN hash,
// per spec.md section 4.A: "PIN hashing for PIN verification uses salted
// SHA-256 with a protocol-constant label".
const pinSaltLabel = "COMLOCK_PIN_SALT_V1"

// HashPIN returns SHA-256(label || pin) for storage/comparison. It is
// deliberately not a memory-hard KDF: this hash authenticates a PIN
// against a stored value held only in memory or in the encrypted blob
// (itself protected by the Argon2id-derived StorageCipher key), not a
// password used to brute-force an offline ciphertext.
func HashPIN(pin string) [32]byte {
	return sha256.Sum256(append([]byte(pinSaltLabel), pin...))
}

// ConstantTimeEqualHash compares two PIN hashes without leaking timing
// information about where they first differ, per spec.md section 8
// ("PIN comparisons ... are constant-time").
func ConstantTimeEqualHash(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
