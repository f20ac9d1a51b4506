package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// IVSize and TagSize are fixed at 16 bytes for every sealed value.
	IVSize  = 16
	TagSize = 16
	KeySize = 32

	kdfIterations = 100_000
)

// fieldSalt is the application-specific salt used to turn the store secret
// into the field encryption key. Changing it makes existing stores unreadable.
var fieldSalt = []byte("recon-ledger/field-encryption/v1")

// DeriveKey 使用 PBKDF2+SHA256 从口令和盐派生 32 字节密钥。
func DeriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, kdfIterations, KeySize, sha256.New)
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return buf, nil
}

// RandomString 生成指定长度的随机字符串（URL 安全，用于密钥、token 等）。
func RandomString(n int) (string, error) {
	buf, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}

// Seal encrypts plaintext under AES-256-GCM with a fresh random IV and
// returns the IV, the authentication tag and the ciphertext separately.
func Seal(key, plaintext []byte) (iv, tag, ciphertext []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv, err = RandomBytes(IVSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("iv: %w", err)
	}
	out := aead.Seal(nil, iv, plaintext, nil)
	split := len(out) - TagSize
	return iv, out[split:], out[:split], nil
}

// Open reverses Seal. Any integrity failure is reported as an error.
func Open(key, iv, tag, ciphertext []byte) ([]byte, error) {
	if len(iv) != IVSize || len(tag) != TagSize {
		return nil, fmt.Errorf("bad iv or tag length")
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// ----------------- 字段级加密：hex(iv):hex(tag):hex(ciphertext) -----------------

// FieldCipher encrypts individual column values. The key is derived once
// from the store secret at construction time.
type FieldCipher struct {
	key []byte
}

// NewFieldCipher derives the field key from the store secret.
func NewFieldCipher(secret string) (*FieldCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret is empty")
	}
	return &FieldCipher{key: DeriveKey(secret, fieldSalt)}, nil
}

// Encrypt returns hex(iv):hex(tag):hex(ciphertext). Two calls with the same
// plaintext never produce the same output.
func (c *FieldCipher) Encrypt(plain string) (string, error) {
	iv, tag, ct, err := Seal(c.key, []byte(plain))
	if err != nil {
		return "", err
	}
	return EncodeSealed(iv, tag, ct), nil
}

// Decrypt returns the plaintext and true on success. A value that does not
// split into three components is legacy plaintext and is returned as is.
// A three-part value that fails to parse or authenticate yields ("", false).
func (c *FieldCipher) Decrypt(stored string) (string, bool) {
	iv, tag, ct, ok := DecodeSealed(stored)
	if !ok {
		if strings.Count(stored, ":") == 2 {
			return "", false
		}
		return stored, true
	}
	plain, err := Open(c.key, iv, tag, ct)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// EncryptPtr keeps nil as nil.
func (c *FieldCipher) EncryptPtr(plain *string) (*string, error) {
	if plain == nil {
		return nil, nil
	}
	enc, err := c.Encrypt(*plain)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// DecryptPtr maps nil to nil and failed decryption to nil.
func (c *FieldCipher) DecryptPtr(stored *string) *string {
	if stored == nil {
		return nil
	}
	plain, ok := c.Decrypt(*stored)
	if !ok {
		return nil
	}
	return &plain
}

// EncodeSealed joins the three components as lowercase hex.
func EncodeSealed(iv, tag, ct []byte) string {
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct)
}

// DecodeSealed splits and hex-decodes a sealed value.
func DecodeSealed(s string) (iv, tag, ct []byte, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, nil, nil, false
	}
	var err error
	if iv, err = hex.DecodeString(parts[0]); err != nil || len(iv) != IVSize {
		return nil, nil, nil, false
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != TagSize {
		return nil, nil, nil, false
	}
	if ct, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, false
	}
	return iv, tag, ct, true
}

// ----------------- 密钥校验值 -----------------

// HashSecret returns a bcrypt verifier for the store secret.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// CheckSecret 验证密钥与存储的校验值是否匹配。
func CheckSecret(secret, stored string) bool {
	if secret == "" || stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
}
