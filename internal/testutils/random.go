package test

import "crypto/rand"

// RandomBytes returns slice of "len" cryptographically random bytes.
func RandomBytes(len int) []byte {
	bytes := make([]byte, len)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return bytes
}
