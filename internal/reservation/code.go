package reservation

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
	// bytes at or above this value are rejected so b%36 stays uniform
	codeCutoff = 256 - 256%len(codeAlphabet)
)

// NewSecretCode returns an 8 character code drawn uniformly from [A-Z0-9].
func NewSecretCode() (string, error) {
	return secretCodeFrom(rand.Reader)
}

func secretCodeFrom(r io.Reader) (string, error) {
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(out) < codeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= codeCutoff {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out), nil
}

// codesEqual compares codes in constant time.
func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
