package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var ErrBadPassphrase = errors.New("backup cannot be decrypted with this passphrase")

// deriveKey stretches a passphrase into an AES-256 key with Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func gcmFor(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under a fresh salt and nonce.
// Layout: [16-byte salt][12-byte nonce][AES-256-GCM ciphertext].
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("empty backup passphrase")
	}
	header := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, fmt.Errorf("generate salt and nonce: %w", err)
	}
	gcm, err := gcmFor(passphrase, header[:saltSize])
	if err != nil {
		return nil, err
	}
	return gcm.Seal(header, header[saltSize:], plaintext, nil), nil
}

// Open reverses Seal.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < saltSize+nonceSize {
		return nil, errors.New("encrypted backup too small")
	}
	gcm, err := gcmFor(passphrase, sealed[:saltSize])
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, sealed[saltSize:saltSize+nonceSize], sealed[saltSize+nonceSize:], nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
