package cli

import (
	"fmt"
	"net/url"

	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/dependencies/random"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
)

// encryptPassword agrees a key with the server for username and encrypts
// the password under it. The server keeps the key until logout.
func encryptPassword(c *Client, username, password string) ([]byte, error) {
	path := "/api/v1/crypt/init/" + url.PathEscape(username)

	var wire response.KeyExchangeParams
	if err := c.Get(path, &wire); err != nil {
		return nil, fmt.Errorf("key exchange init: %w", err)
	}
	params, ok := wire.ToModel()
	if !ok {
		return nil, fmt.Errorf("key exchange init: malformed parameters")
	}

	peer, err := keyexchange.NewPeer(random.New(), params)
	if err != nil {
		return nil, err
	}

	req := request.KeyExchangeRequest{
		Modulus:     peer.Modulus().String(),
		Generator:   params.Generator.String(),
		PublicValue: peer.Public.String(),
	}
	if err := c.Post("/api/v1/crypt/end/"+url.PathEscape(username), req, nil); err != nil {
		return nil, fmt.Errorf("key exchange end: %w", err)
	}

	return keyexchange.Encrypt(peer.SharedKey(params.PublicValue), []byte(password))
}
