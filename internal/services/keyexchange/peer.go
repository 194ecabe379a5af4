package keyexchange

import (
	"fmt"
	"math/big"

	"github.com/mcoot/pairplay/internal/dependencies/random"
)

// Peer is the client side of the exchange
type Peer struct {
	modulus  *big.Int
	exponent *big.Int

	// Public is sent back to the server to complete the exchange
	Public *big.Int
}

// NewPeer picks a private exponent the same size as the server's modulus
// and computes the matching public value
func NewPeer(rnd random.Random, server Params) (*Peer, error) {
	if server.Modulus == nil || server.Modulus.Cmp(big.NewInt(1)) <= 0 || server.Generator == nil {
		return nil, fmt.Errorf("%w: missing modulus or generator", ErrInvalidKeyExchange)
	}
	exponent, err := rnd.Prime(server.Modulus.BitLen())
	if err != nil {
		return nil, fmt.Errorf("generate exponent: %w", err)
	}
	return &Peer{
		modulus:  new(big.Int).Set(server.Modulus),
		exponent: exponent,
		Public:   ModExp(server.Generator, exponent, server.Modulus),
	}, nil
}

// Modulus returns the modulus this peer computes under
func (p *Peer) Modulus() *big.Int {
	return new(big.Int).Set(p.modulus)
}

// SharedKey derives the AES key from the server's public value
func (p *Peer) SharedKey(serverPublic *big.Int) []byte {
	return deriveKey(ModExp(serverPublic, p.exponent, p.modulus))
}
