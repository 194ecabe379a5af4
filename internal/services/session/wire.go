package session

import (
	"encoding/base64"
	"fmt"
)

// Cookies carry raw digest bytes, which are not safe in headers, URLs or
// JSON strings. Over the wire they travel as unpadded base64url.

// EncodeCookie returns the wire form of a cookie
func EncodeCookie(cookie string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cookie))
}

// DecodeCookie parses the wire form of a cookie
func DecodeCookie(wire string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(wire)
	if err != nil {
		return "", fmt.Errorf("decode cookie: %w", err)
	}
	return string(raw), nil
}
