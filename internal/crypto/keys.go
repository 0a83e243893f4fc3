package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	rsaKeyBits = 2048

	kdfSaltSize   = 16
	kdfIterations = 100_000
	kdfKeySize    = 32
)

// GenerateKeyPair generates an RSA-2048 key pair and returns the public key in
// PEM form alongside the private key.
func GenerateKeyPair() (publicKeyPEM string, priv *rsa.PrivateKey, err error) {
	priv, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", nil, fmt.Errorf("generate rsa key: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", nil, fmt.Errorf("marshal public key: %w", err)
	}
	publicKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return publicKeyPEM, priv, nil
}

// ParsePublicKeyPEM parses a PEM-encoded RSA public key.
func ParsePublicKeyPEM(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return pub, nil
}

// ProtectPrivateKey encrypts the private key under a password-derived key and
// returns base64(salt[16] || aesGCM(pkcs8DER)). No separate password hash is
// kept anywhere; verifying a password is an attempted RecoverPrivateKey.
func ProtectPrivateKey(priv *rsa.PrivateKey, password string) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}

	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, kdfKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, der, nil)

	combined := append(salt, sealed...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// RecoverPrivateKey decrypts a ProtectPrivateKey blob. A wrong password fails
// the authenticated decryption and yields ErrDecryption.
func RecoverPrivateKey(blob string, password string) (*rsa.PrivateKey, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(combined) < kdfSaltSize {
		return nil, ErrDecryption
	}
	salt := combined[:kdfSaltSize]
	sealed := combined[kdfSaltSize:]

	key := pbkdf2.Key([]byte(password), salt, kdfIterations, kdfKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryption
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrDecryption
	}
	der, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryption
	}

	key8, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, ErrDecryption
	}
	priv, ok := key8.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrDecryption
	}
	return priv, nil
}
