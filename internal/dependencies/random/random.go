package random

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Prime returns a probable prime of exactly the given bit length
	Prime(bits int) (*big.Int, error)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Prime returns a cryptographically random probable prime of the given bit length
func (r *CryptoRandom) Prime(bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, errors.New("prime size must be at least 2 bits")
	}
	return rand.Prime(rand.Reader, bits)
}
