package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
)

// TokenFingerprint derives the deterministic, one-way pseudonym for a
// (user, round) pair: hex(sha256(decimal(userID) || decimal(roundID))).
// Repeated calls within a round return the same value before any row exists.
func TokenFingerprint(userID uint, roundID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%d", userID, roundID)))
	return hex.EncodeToString(sum[:])
}

// IDCodec symmetrically encrypts user ids for storage inside token mappings so
// that only a holder of the server secret can reverse a pseudonym. The blob is
// base64(iv[16] || aesCBC(pkcs7(decimal(userID)))) with a fresh random IV per
// encryption; a fixed IV would let equal ids produce equal blobs.
type IDCodec struct {
	key []byte
}

// NewIDCodec derives the AES-256 key as sha256 of the configured secret.
func NewIDCodec(secret string) *IDCodec {
	sum := sha256.Sum256([]byte(secret))
	return &IDCodec{key: sum[:]}
}

// Encrypt returns the encrypted-id blob for storage.
func (c *IDCodec) Encrypt(userID uint) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(strconv.FormatUint(uint64(userID), 10)), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt reverses Encrypt. This is a moderator-only unmasking operation.
func (c *IDCodec) Decrypt(blob string) (uint, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return 0, ErrDecryption
	}
	if len(combined) < 2*aes.BlockSize || len(combined)%aes.BlockSize != 0 {
		return 0, ErrDecryption
	}
	iv := combined[:aes.BlockSize]
	ciphertext := combined[aes.BlockSize:]

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return 0, ErrDecryption
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return 0, ErrDecryption
	}
	id, err := strconv.ParseUint(string(plain), 10, 32)
	if err != nil {
		return 0, ErrDecryption
	}
	return uint(id), nil
}
