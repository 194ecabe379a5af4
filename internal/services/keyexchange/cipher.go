package keyexchange

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// The IV is all zeros for every session, so equal plaintexts under one key
// give equal ciphertexts. Kept for client compatibility; it is a known
// weakness and must not be relied on beyond carrying a single password.
var zeroIV = make([]byte, aes.BlockSize)

// Encrypt is the client half of the password transport: AES-CBC with PKCS#5
// padding under the shared key
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyExchange, err)
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, padded)
	return out, nil
}

func decryptCBC(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrInvalidCiphertext, len(ciphertext), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(out, ciphertext)

	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	for _, b := range out[len(out)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
		}
	}
	return out[:len(out)-padLen], nil
}
