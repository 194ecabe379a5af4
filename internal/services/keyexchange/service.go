// Package keyexchange runs the Diffie-Hellman exchange used to carry a
// password from client to server, and decrypts that password.
package keyexchange

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/mcoot/pairplay/internal/dependencies/random"
	"github.com/mcoot/pairplay/internal/model"
)

const (
	// Generator is the fixed DH generator
	Generator = 5
	// MinPrimeBits is the smallest modulus size accepted
	MinPrimeBits = 500
	// KeySize is the AES-128 key length taken from the shared secret
	KeySize = 16
)

// Errors
var (
	ErrNoExponent         = fmt.Errorf("%w: request initial parameters first", model.ErrUserNotFound)
	ErrNoSharedKey        = fmt.Errorf("%w: no shared key established", model.ErrUserNotFound)
	ErrInvalidKeyExchange = errors.New("invalid key exchange parameters")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
)

// Params are the public values of one side of the exchange
type Params struct {
	Modulus     *big.Int
	Generator   *big.Int
	PublicValue *big.Int
}

// Config holds configuration for the key exchange service
type Config struct {
	PrimeBits int
}

// DefaultConfig returns default key exchange configuration
func DefaultConfig() Config {
	return Config{
		PrimeBits: 512,
	}
}

type userSession struct {
	mu       sync.Mutex
	exponent *big.Int
	key      []byte
}

// Service holds process-wide DH parameters and per-user exchange state.
// State never expires; it is dropped only by Forget.
type Service struct {
	random    random.Random
	logger    *slog.Logger
	bits      int
	modulus   *big.Int
	generator *big.Int

	mu       sync.Mutex
	sessions map[string]*userSession
}

// New creates a Service, generating a fresh probable-prime modulus
func New(rnd random.Random, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.PrimeBits == 0 {
		cfg.PrimeBits = DefaultConfig().PrimeBits
	}
	if cfg.PrimeBits < MinPrimeBits {
		return nil, fmt.Errorf("prime size %d below minimum %d bits", cfg.PrimeBits, MinPrimeBits)
	}

	modulus, err := rnd.Prime(cfg.PrimeBits)
	if err != nil {
		return nil, fmt.Errorf("generate modulus: %w", err)
	}

	logger.Info("key exchange parameters generated",
		slog.Int("prime_bits", cfg.PrimeBits),
		slog.Int("generator", Generator),
	)

	return &Service{
		random:    rnd,
		logger:    logger,
		bits:      cfg.PrimeBits,
		modulus:   modulus,
		generator: big.NewInt(Generator),
		sessions:  make(map[string]*userSession),
	}, nil
}

// Modulus returns a copy of the process-wide modulus
func (s *Service) Modulus() *big.Int {
	return new(big.Int).Set(s.modulus)
}

// session returns the state for a username, creating it if asked
func (s *Service) session(username string, create bool) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[username]
	if !ok && create {
		sess = &userSession{}
		s.sessions[username] = sess
	}
	return sess
}

// RequestPublicParameter returns the modulus, generator and the user's public
// value, generating the user's private exponent on first use. Repeated calls
// return the same public value until Forget.
func (s *Service) RequestPublicParameter(username string) (Params, error) {
	sess := s.session(username, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.exponent == nil {
		exponent, err := s.random.Prime(s.bits)
		if err != nil {
			return Params{}, fmt.Errorf("generate exponent: %w", err)
		}
		sess.exponent = exponent
		s.logger.Debug("private exponent generated", slog.String("username", username))
	}

	return Params{
		Modulus:     new(big.Int).Set(s.modulus),
		Generator:   new(big.Int).Set(s.generator),
		PublicValue: ModExp(s.generator, sess.exponent, s.modulus),
	}, nil
}

// CompleteKeyExchange derives and stores the shared key from the peer's
// public value. The modulus is the one the peer used.
func (s *Service) CompleteKeyExchange(username string, peerPublic, modulus *big.Int) error {
	if peerPublic == nil || peerPublic.Sign() <= 0 {
		return fmt.Errorf("%w: public value must be positive", ErrInvalidKeyExchange)
	}
	if modulus == nil || modulus.Cmp(big.NewInt(1)) <= 0 {
		return fmt.Errorf("%w: modulus must be greater than 1", ErrInvalidKeyExchange)
	}
	// Exponentiation cost grows with operand size
	if limit := s.maxPeerBits(); modulus.BitLen() > limit || peerPublic.BitLen() > limit {
		return fmt.Errorf("%w: values may be at most %d bits", ErrInvalidKeyExchange, limit)
	}

	sess := s.session(username, false)
	if sess == nil {
		return ErrNoExponent
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.exponent == nil {
		return ErrNoExponent
	}

	sess.key = deriveKey(ModExp(peerPublic, sess.exponent, modulus))
	s.logger.Debug("shared key established", slog.String("username", username))
	return nil
}

func (s *Service) maxPeerBits() int {
	return 2 * s.bits
}

// Decrypt decrypts a password sent under the user's shared key
func (s *Service) Decrypt(username string, ciphertext []byte) (string, error) {
	sess := s.session(username, false)
	if sess == nil {
		return "", ErrNoSharedKey
	}
	sess.mu.Lock()
	key := sess.key
	sess.mu.Unlock()
	if key == nil {
		return "", ErrNoSharedKey
	}

	plaintext, err := decryptCBC(key, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Forget drops all exchange state for a user
func (s *Service) Forget(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, username)
}

// ModExp computes x^y mod n by iterative square-and-multiply over the bits
// of y, most significant first. x^0 mod n is 1 for every n.
func ModExp(x, y, n *big.Int) *big.Int {
	result := big.NewInt(1)
	for i := y.BitLen() - 1; i >= 0; i-- {
		result.Mul(result, result)
		result.Mod(result, n)
		if y.Bit(i) == 1 {
			result.Mul(result, x)
			result.Mod(result, n)
		}
	}
	return result
}

// deriveKey takes the first KeySize big-endian bytes of the shared secret,
// left-padding secrets shorter than that
func deriveKey(secret *big.Int) []byte {
	raw := secret.Bytes()
	key := make([]byte, KeySize)
	if len(raw) >= KeySize {
		copy(key, raw[:KeySize])
	} else {
		copy(key[KeySize-len(raw):], raw)
	}
	return key
}
