package exchange

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// sasWords is the 16-entry word list spec.md section 4.I's Short
// Authentication String draws from, distinct from pkg/fingerprint's
// 64-entry emoji list used for long-term key fingerprints.
var sasWords = []string{
	"Robot", "Apple", "Tiger", "Ocean", "Piano", "Eagle", "Maple", "Crown",
	"Arrow", "Storm", "Coral", "Blaze", "Frost", "Jade", "Orbit", "Spark",
}

const sasSalt = "COMLOCK_SAS_V1"

// SAS computes the Short Authentication String both sides of a QR
// exchange display for out-of-band verification: two words and a two
// digit number, derived from SHA-256("COMLOCK_SAS_V1" || shared).
func SAS(shared []byte) string {
	h := sha256.Sum256(append([]byte(sasSalt), shared...))
	w1 := sasWords[int(h[0])%len(sasWords)]
	w2 := sasWords[int(h[1])%len(sasWords)]
	n := int(h[2]) % 100
	return fmt.Sprintf("%s-%s-%02d", w1, w2, n)
}

// VerifySAS recomputes the SAS for shared and compares it against
// claimed (what the other party read aloud) in constant time with
// respect to claimed, per spec.md section 8's "verify_sas is
// constant-time with respect to the claimed SAS".
func VerifySAS(shared []byte, claimed string) bool {
	want := SAS(shared)
	if len(want) != len(claimed) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(claimed)) == 1
}

const sessionIDSalt = "COMLOCK_SESSION_ID"

// SessionID derives the stable contact session identifier from a shared
// secret: the first 16 bytes of SHA-256("COMLOCK_SESSION_ID" || shared),
// hex-encoded.
func SessionID(shared []byte) string {
	h := sha256.Sum256(append([]byte(sessionIDSalt), shared...))
	return fmt.Sprintf("%x", h[:16])
}
