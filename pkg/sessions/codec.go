// pkg/sessions/codec.go
package sessions

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

const blobVersion = 0x01

// Codec encrypts serialized sessions with AES-256-GCM before they hit storage.
// The key is derived from the configured secret with SHA-256; the secret itself
// is never persisted alongside the data it protects.
type Codec struct {
	key [32]byte
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("sessions: empty encryption secret")
	}
	return &Codec{key: sha256.Sum256([]byte(secret))}, nil
}

// Encrypt produces a version-prefixed blob: 0x01 || nonce || ciphertext.
func (c *Codec) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = blobVersion
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

// Decrypt is the inverse of Encrypt. Any malformed, tampered or wrong-key blob
// comes back as ErrCorruptedPayload: such a session can never be recovered.
func (c *Codec) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("%w: blob too short", ErrCorruptedPayload)
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptedPayload, blob[0])
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return nil, fmt.Errorf("%w: short nonce", ErrCorruptedPayload)
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	ct := blob[1+gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedPayload, err)
	}
	return plain, nil
}
