// Package secrets stores sensitive credentials (API keys, OOB-service
// tokens) in an encrypted file.
//
// 加密方案：PBKDF2-SHA256 派生密钥 + AES-256-GCM，随机盐和 nonce 随密文存储。
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength      = 32
	saltLength     = 16
	kdfIterations  = 100_000
	vaultFileMode  = 0o600
	defaultEnvFile = "PACEKIT_VAULT_FILE"
	defaultEnvPass = "PACEKIT_VAULT_PASSWORD"
)

var (
	// ErrNoPassword 未提供密码
	ErrNoPassword = errors.New("secrets: password is required")

	// ErrVaultNotFound 加密文件不存在
	ErrVaultNotFound = errors.New("secrets: vault file not found")

	// ErrDecryptFailed 解密失败（密码错误或文件损坏）
	ErrDecryptFailed = errors.New("secrets: decrypt failed")
)

// Vault 加密凭据存储
type Vault struct {
	password []byte
	path     string
}

// NewVault creates a vault bound to path, encrypted with password.
// Empty arguments fall back to the PACEKIT_VAULT_FILE / PACEKIT_VAULT_PASSWORD
// environment variables.
func NewVault(path, password string) (*Vault, error) {
	if password == "" {
		password = os.Getenv(defaultEnvPass)
	}
	if password == "" {
		return nil, ErrNoPassword
	}
	if path == "" {
		path = os.Getenv(defaultEnvFile)
	}
	if path == "" {
		path = "./pacekit.vault"
	}

	return &Vault{password: []byte(password), path: path}, nil
}

// Save encrypts creds and writes them to the vault file (mode 0600).
func (v *Vault) Save(creds map[string]string) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("secrets: marshal failed: %w", err)
	}

	ciphertext, err := v.encrypt(plaintext)
	if err != nil {
		return err
	}

	if err := os.WriteFile(v.path, ciphertext, vaultFileMode); err != nil {
		return fmt.Errorf("secrets: write vault failed: %w", err)
	}
	return nil
}

// Load reads and decrypts the vault file.
func (v *Vault) Load() (map[string]string, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("secrets: read vault failed: %w", err)
	}

	plaintext, err := v.decrypt(data)
	if err != nil {
		return nil, err
	}

	var creds map[string]string
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("secrets: unmarshal failed: %w", err)
	}
	return creds, nil
}

// Get loads the vault and returns one credential ("" when absent).
func (v *Vault) Get(key string) (string, error) {
	creds, err := v.Load()
	if err != nil {
		return "", err
	}
	return creds[key], nil
}

// Set loads the vault (treating a missing file as empty), updates one
// credential and saves it back.
func (v *Vault) Set(key, value string) error {
	creds, err := v.Load()
	if errors.Is(err, ErrVaultNotFound) {
		creds = make(map[string]string)
	} else if err != nil {
		return err
	}

	creds[key] = value
	return v.Save(creds)
}

// encrypt 布局: salt(16) || nonce(12) || GCM ciphertext
func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("secrets: generate salt failed: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secrets: generate nonce failed: %w", err)
	}

	out := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

func (v *Vault) decrypt(data []byte) ([]byte, error) {
	if len(data) < saltLength {
		return nil, ErrDecryptFailed
	}

	salt := data[:saltLength]
	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	rest := data[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	nonce := rest[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.password, salt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: create cipher failed: %w", err)
	}
	return cipher.NewGCM(block)
}
