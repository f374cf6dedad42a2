package crypto

// Zeroize overwrites b with zeros in place, so key material a caller
// has finished with doesn't linger in memory past its useful lifetime.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
