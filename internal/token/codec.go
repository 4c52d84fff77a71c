package token

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const keySize = 32

var (
	// ErrMissingKey is returned when the codec has no secret configured
	ErrMissingKey = errors.New("token secret key is not configured")

	// ErrDecode is returned for malformed ciphertext or invalid padding
	ErrDecode = errors.New("failed to decode token")
)

// Codec encrypts metadata records into opaque hex tokens and back.
// Records are serialized as JSON; struct fields are declared in
// alphabetical order so equal records always yield equal plaintexts.
type Codec struct {
	block cipher.Block
}

// NewCodec builds a codec from the process-wide secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}

	block, err := aes.NewCipher([]byte(normalizeKey(secret)))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Codec{block: block}, nil
}

// normalizeKey fits the secret to the 32 byte AES-256 key size
func normalizeKey(secret string) string {
	switch {
	case len(secret) < keySize:
		return secret + strings.Repeat("0", keySize-len(secret))
	case len(secret) < keySize+3:
		return secret[:keySize]
	default:
		return secret[3 : keySize+3]
	}
}

// Encode serializes v and encrypts it into a token.
func (c *Codec) Encode(v any) (string, error) {
	if c == nil || c.block == nil {
		return "", ErrMissingKey
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}

	plain = pad(plain, c.block.BlockSize())
	out := make([]byte, len(plain))
	for i := 0; i < len(plain); i += c.block.BlockSize() {
		c.block.Encrypt(out[i:], plain[i:])
	}

	return hex.EncodeToString(out), nil
}

// Decode decrypts a token into v.
func (c *Codec) Decode(token string, v any) error {
	if c == nil || c.block == nil {
		return ErrMissingKey
	}

	raw, err := hex.DecodeString(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	size := c.block.BlockSize()
	if len(raw) == 0 || len(raw)%size != 0 {
		return fmt.Errorf("%w: invalid ciphertext length %d", ErrDecode, len(raw))
	}

	plain := make([]byte, len(raw))
	for i := 0; i < len(raw); i += size {
		c.block.Decrypt(plain[i:], raw[i:])
	}

	plain, err = unpad(plain, size)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return nil
}

// pad applies PKCS#7 padding
func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecode)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecode)
		}
	}
	return data[:len(data)-n], nil
}
