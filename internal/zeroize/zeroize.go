// Package zeroize overwrites secret buffers in place so callers can scrub
// key material as soon as it is no longer needed, per the ownership rules
// in spec.md section 3: ratchet chains, ephemeral secrets, message keys
// and PIN buffers must be zeroed on drop.
package zeroize

// Bytes overwrites b with zeros. It is a no-op for a nil or empty slice.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Many zeroes every slice in bs.
func Many(bs ...[]byte) {
	for _, b := range bs {
		Bytes(b)
	}
}

// String sets *s to the empty string and returns nothing. Go strings are
// immutable, so the original bytes are not overwritten; callers that need
// to scrub a secret string must have built it from a []byte they still
// hold a reference to, and zero that. This helper
// exists to document the limitation at call sites rather than to
// pretend it can scrub the original string header.
func String(s *string) {
	*s = ""
}
