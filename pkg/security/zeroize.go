package security

import "runtime"

// Zeroize overwrites a secret with zeros. The KeepAlive fence keeps the
// wipe from being treated as a dead store, so the bytes are gone even
// when the buffer is released right after the call.
func Zeroize(secret []byte) {
	for i := range secret {
		secret[i] = 0
	}
	runtime.KeepAlive(secret)
}
