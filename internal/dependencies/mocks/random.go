package mocks

import (
	"errors"
	"math/big"
	"sync"

	"github.com/mcoot/pairplay/internal/dependencies/random"
)

// ErrNoPrimeQueued is returned by MockRandom when its prime queue is empty
var ErrNoPrimeQueued = errors.New("mock random: no prime queued")

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// PrimeResults is a queue of results to return from Prime
	PrimeResults []*big.Int
	primeIndex   int

	// PrimeCalls records the bit lengths requested
	PrimeCalls []int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Prime returns the next queued result, or ErrNoPrimeQueued if none remaining
func (r *MockRandom) Prime(bits int) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PrimeCalls = append(r.PrimeCalls, bits)
	if r.primeIndex >= len(r.PrimeResults) {
		return nil, ErrNoPrimeQueued
	}
	result := r.PrimeResults[r.primeIndex]
	r.primeIndex++
	return new(big.Int).Set(result), nil
}

// QueuePrime adds values to the Prime result queue
func (r *MockRandom) QueuePrime(values ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		r.PrimeResults = append(r.PrimeResults, big.NewInt(v))
	}
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PrimeResults = nil
	r.primeIndex = 0
	r.PrimeCalls = nil
}
