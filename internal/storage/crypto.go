package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize      = 16
	pbkdf2Rounds  = 10000
	derivedKeyLen = 32
)

// encryptor seals artifact bodies with AES-256-GCM. The key is derived
// from the configured passphrase with a per-object salt, so the stored
// object is self-contained: salt || nonce || ciphertext.
type encryptor struct {
	passphrase []byte
}

func newEncryptor(passphrase string) (*encryptor, error) {
	if len(passphrase) < 8 {
		return nil, fmt.Errorf("encryption key too short")
	}
	return &encryptor{passphrase: []byte(passphrase)}, nil
}

func (e *encryptor) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Rounds, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plain)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

// open reverses seal. Kept alongside seal so mirrored artifacts can be
// recovered with the same passphrase.
func (e *encryptor) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize {
		return nil, fmt.Errorf("sealed data too short")
	}
	salt, rest := sealed[:saltSize], sealed[saltSize:]
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Rounds, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed data too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newByteReader(b []byte) io.Reader { return bytes.NewReader(b) }
