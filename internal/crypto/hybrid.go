// Package crypto implements the hybrid message encryption, password-protected
// private-key storage, and the token pseudonym primitives.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecryption is returned on any integrity or format mismatch during
// decryption: wrong key, truncated blob, bad padding. Callers never receive
// partial plaintext.
var ErrDecryption = errors.New("decryption failed")

const (
	aesKeySize = 32 // AES-256
	ivSize     = aes.BlockSize
	// rsaBlockSize is the size of an RSA-2048 OAEP ciphertext.
	rsaBlockSize = 256
)

// EncryptMessage encrypts plaintext for the holder of the given public key
// using hybrid RSA-OAEP + AES-CBC encryption. A fresh symmetric key and IV are
// generated per message and never reused. The returned blob is
// base64(iv[16] || rsaOAEP(aesKey)[256] || aesCBC(pkcs7(plaintext))).
func EncryptMessage(plaintext string, publicKeyPEM string) (string, error) {
	pub, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("parse recipient public key: %w", err)
	}

	aesKey := make([]byte, aesKeySize)
	if _, err := rand.Read(aesKey); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt session key: %w", err)
	}

	combined := make([]byte, 0, len(iv)+len(encryptedKey)+len(ciphertext))
	combined = append(combined, iv...)
	combined = append(combined, encryptedKey...)
	combined = append(combined, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// DecryptMessage reverses EncryptMessage with the recipient's private key.
// Any malformed input or key mismatch yields ErrDecryption.
func DecryptMessage(blob string, priv *rsa.PrivateKey) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryption
	}
	if len(combined) < ivSize+rsaBlockSize+aes.BlockSize {
		return "", ErrDecryption
	}

	iv := combined[:ivSize]
	encryptedKey := combined[ivSize : ivSize+rsaBlockSize]
	ciphertext := combined[ivSize+rsaBlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrDecryption
	}

	aesKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encryptedKey, nil)
	if err != nil {
		return "", ErrDecryption
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", ErrDecryption
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryption
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrDecryption
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrDecryption
		}
	}
	return data[:len(data)-padLen], nil
}
