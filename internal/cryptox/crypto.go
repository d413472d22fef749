// Package cryptox encrypts voiceprint embeddings at rest.
//
// Embeddings are sealed with AES-GCM under a key derived from the server
// storage secret and a per-user salt via Argon2id. The ciphertext and the
// 12-byte nonce are stored separately.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// DeriveStorageKey derives a 32-byte AES key from the server storage secret
// and a per-user salt using Argon2id.
func DeriveStorageKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// MakeSalt returns a fresh random salt of the given size.
func MakeSalt(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncryptEmbedding encrypts a raw embedding with AES-GCM.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A new random
// 12-byte nonce is generated for each call and returned alongside the
// ciphertext.
func EncryptEmbedding(embedding, key []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, embedding, nil)

	return ciphertext, nonce, nil
}

// DecryptEmbedding reverses EncryptEmbedding. The key and the 12-byte nonce
// must be the ones used during encryption.
func DecryptEmbedding(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, nonce, ciphertext, nil)
}
