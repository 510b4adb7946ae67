package fingerprint

import "encoding/base64"

// Base64 renders b in the compact, URL-safe, unpadded form used for
// the short textual fingerprint alongside the emoji/hex renderings.
func Base64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
