package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations is the work factor for passphrase-derived keys.
const pbkdf2Iterations = 600000

// pbkdf2SaltSize is the random salt length prepended to passphrase-derived
// ciphertext.
const pbkdf2SaltSize = 16

// Encryptor provides AES-256-GCM encryption and decryption.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte key (base64-encoded or raw).
// If key is empty, it generates a random key and returns it encoded.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
		key = base64.StdEncoding.EncodeToString(keyBytes)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			// Try using the key as raw bytes (for testing)
			if len(key) == 32 {
				keyBytes = []byte(key)
			} else {
				return nil, "", fmt.Errorf("decoding encryption key: %w", err)
			}
		} else {
			keyBytes = decoded
		}
	}

	if len(keyBytes) != 32 {
		return nil, "", fmt.Errorf("encryption key must be 32 bytes, got %d", len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, "", fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("creating GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, key, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// PassphraseEncryptor derives a per-ciphertext key from a user passphrase
// via PBKDF2, so a credential at rest does not depend on a separately
// managed raw key file. cmd/scrubberd uses it for the Last.fm password.
type PassphraseEncryptor struct {
	passphrase string
}

// NewPassphraseEncryptor builds a PassphraseEncryptor from a non-empty
// passphrase.
func NewPassphraseEncryptor(passphrase string) (*PassphraseEncryptor, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	return &PassphraseEncryptor{passphrase: passphrase}, nil
}

// Encrypt derives a random-salted key and returns salt||nonce||ciphertext,
// base64-encoded.
func (p *PassphraseEncryptor) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, pbkdf2SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := p.gcmForSalt(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(append(salt, nonce...), sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt, re-deriving the key from the embedded salt.
func (p *PassphraseEncryptor) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(data) < pbkdf2SaltSize {
		return "", errors.New("ciphertext too short")
	}

	salt, rest := data[:pbkdf2SaltSize], data[pbkdf2SaltSize:]
	gcm, err := p.gcmForSalt(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}

func (p *PassphraseEncryptor) gcmForSalt(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(p.passphrase), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Decrypt decrypts a base64-encoded ciphertext and returns the plaintext.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	return string(plaintext), nil
}
