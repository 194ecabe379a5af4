package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/pairplay/internal/dependencies/mocks"
	"github.com/mcoot/pairplay/internal/dependencies/random"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
	"github.com/mcoot/pairplay/internal/services/user"
	"github.com/mcoot/pairplay/internal/storage/memory"
	"github.com/mcoot/pairplay/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with a mocked clock.
// Key exchange uses real primes at the minimum size and bcrypt its cheapest
// cost so tests stay fast.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	app, err := newWithDependencies(
		store,
		mockClock,
		random.New(),
		keyexchange.Config{PrimeBits: keyexchange.MinPrimeBits},
		user.Config{BcryptCost: bcrypt.MinCost},
		testutil.NopLogger(),
	)
	if err != nil {
		panic("test app: " + err.Error())
	}

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}

// EncryptPassword runs the client half of the key exchange for username and
// returns the password encrypted under the agreed key
func (t *TestApp) EncryptPassword(username, password string) ([]byte, error) {
	params, err := t.KeyExchange.RequestPublicParameter(username)
	if err != nil {
		return nil, err
	}
	peer, err := keyexchange.NewPeer(random.New(), params)
	if err != nil {
		return nil, err
	}
	if err := t.KeyExchange.CompleteKeyExchange(username, peer.Public, peer.Modulus()); err != nil {
		return nil, err
	}
	return keyexchange.Encrypt(peer.SharedKey(params.PublicValue), []byte(password))
}
