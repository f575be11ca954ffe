package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
)

// KeyLength is the AES-256 key size.
const KeyLength = 32

// SaltLength is the size of the key derivation salt.
const SaltLength = 16

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams follows the argon2id recommendation for interactive use.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// DeriveKey stretches passphrase into an AES-256 key.
func DeriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, KeyLength)
}

// NewSalt returns SaltLength random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "generate salt")
	}
	return salt, nil
}

// seal encrypts plaintext with AES-256-GCM. The result is nonce||ciphertext
// and aad is authenticated but not stored.
func seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// open reverses seal.
func open(key, sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrCorrupted
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrCorrupted
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "init cipher")
	}
	gcm, err := cipher.NewGCM(blk)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "init gcm")
	}
	return gcm, nil
}
