package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/ports"
)

// envelopePrefix marks an encrypted message body. Bodies without it are
// treated as plaintext, which supports enabling encryption on an existing
// game mid-flight.
const envelopePrefix = "enc.v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.MessageStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts message bodies
// at rest using AES-GCM. Routing metadata stays in the clear so ordering and
// visibility queries keep working against the raw store.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.MessageStore) ports.MessageStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Append(ctx context.Context, gameID string, msg *domain.GameMessage) error {
	ciphertext, err := encrypt([]byte(msg.Body), m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt message body: %w", err)
	}

	// The store assigns ID and Seq on the sealed copy; reflect them back so
	// the caller still sees its message stamped.
	sealed := *msg
	sealed.Body = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	if err := m.next.Append(ctx, gameID, &sealed); err != nil {
		return err
	}
	msg.ID = sealed.ID
	msg.Seq = sealed.Seq
	msg.Timestamp = sealed.Timestamp
	return nil
}

func (m *encryptionMiddleware) Messages(ctx context.Context, gameID string) ([]domain.GameMessage, error) {
	messages, err := m.next.Messages(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		body, err := m.open(messages[i].Body)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", messages[i].ID, err)
		}
		messages[i].Body = body
	}
	return messages, nil
}

func (m *encryptionMiddleware) DeleteAfter(ctx context.Context, gameID, messageID string) (int, error) {
	return m.next.DeleteAfter(ctx, gameID, messageID)
}

func (m *encryptionMiddleware) open(body string) (string, error) {
	if !strings.HasPrefix(body, envelopePrefix) {
		return body, nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(body, envelopePrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt message body: %w", err)
	}
	return string(plain), nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
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
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
