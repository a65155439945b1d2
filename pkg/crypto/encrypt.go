// Package crypto seals exported files with a password.
//
// A sealed file is a fixed header followed by AES-256-GCM ciphertext. The key
// is derived with Argon2id; the KDF parameters travel in the header so files
// sealed with different settings stay readable.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

const (
	// MagicBytes identifies a sealed cardvault export.
	MagicBytes = "CVSL"

	// FormatVersion of the sealed file header.
	FormatVersion = 1

	// SealedExt is appended to the filename of a sealed export.
	SealedExt = ".sealed"

	SaltSize  = 16
	NonceSize = 12 // GCM standard nonce size
	KeyLen    = 32 // AES-256

	// magic(4) + version(1) + time(4) + memory(4) + threads(1) + salt + nonce
	HeaderSize = 4 + 1 + 4 + 4 + 1 + SaltSize + NonceSize
)

var (
	ErrInvalidMagic   = errors.New("invalid file format: not a sealed cardvault export")
	ErrInvalidVersion = errors.New("unsupported sealed format version")
	ErrDecryptFailed  = errors.New("unseal failed: wrong password or corrupted data")
	ErrEmptyPassword  = errors.New("password must not be empty")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams returns the OWASP-recommended Argon2id settings.
func DefaultParams() Params {
	return Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// DeriveKey derives an AES-256 key from a password using Argon2id.
func DeriveKey(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with password.
func Seal(plaintext []byte, password string, p Params) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], MagicBytes)
	header[4] = FormatVersion
	binary.LittleEndian.PutUint32(header[5:9], p.Time)
	binary.LittleEndian.PutUint32(header[9:13], p.MemoryKiB)
	header[13] = p.Threads

	salt := header[14 : 14+SaltSize]
	nonce := header[14+SaltSize : HeaderSize]
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(DeriveKey(password, salt, p))
	if err != nil {
		return nil, err
	}

	// The header is authenticated as additional data.
	ciphertext := gcm.Seal(nil, nonce, plaintext, header)
	return append(header, ciphertext...), nil
}

// Open decrypts data produced by Seal.
func Open(data []byte, password string) ([]byte, error) {
	if !IsSealed(data) || len(data) < HeaderSize {
		return nil, ErrInvalidMagic
	}
	if data[4] != FormatVersion {
		return nil, ErrInvalidVersion
	}

	header := data[:HeaderSize]
	p := Params{
		Time:      binary.LittleEndian.Uint32(header[5:9]),
		MemoryKiB: binary.LittleEndian.Uint32(header[9:13]),
		Threads:   header[13],
	}
	if p.Time == 0 || p.Threads == 0 {
		return nil, ErrDecryptFailed
	}
	salt := header[14 : 14+SaltSize]
	nonce := header[14+SaltSize : HeaderSize]

	gcm, err := newGCM(DeriveKey(password, salt, p))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[HeaderSize:], header)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// OpenFile reads and decrypts a sealed file.
func OpenFile(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Open(data, password)
}

// IsSealed checks if data starts with the sealed export magic bytes.
func IsSealed(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == MagicBytes
}
