// Package vault encrypts calendar credentials with an installation-wide
// secret so they can be committed inside repository configuration.
//
// It wraps filippo.io/age with a passphrase (scrypt) recipient. age
// authenticates the payload, so a wrong secret or a tampered blob is
// reported as ErrDecryption instead of producing garbage plaintext.
// Ciphertext is base64 on a single line so it fits in a YAML value or an
// issue comment.
package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// DefaultWorkFactor is the scrypt log2(N) used for new ciphertext. Every
// notification pays one decryption.
const DefaultWorkFactor = 15

var (
	ErrDecryption          = errors.New("vault: unable to decrypt credential")
	ErrMalformedCredential = errors.New("vault: decrypted credential is not valid JSON")
	ErrEmptySecret         = errors.New("vault: secret is empty")
)

type Vault struct {
	secret     string
	workFactor int
}

// New returns a vault for secret. A workFactor of zero selects
// DefaultWorkFactor.
func New(secret string, workFactor int) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if workFactor == 0 {
		workFactor = DefaultWorkFactor
	}
	if workFactor < 1 || workFactor > 30 {
		return nil, fmt.Errorf("vault: work factor %d out of range 1-30", workFactor)
	}
	return &Vault{
		secret:     secret,
		workFactor: workFactor,
	}, nil
}

// Encrypt returns base64 age ciphertext. Output is randomized: encrypting
// the same payload twice gives different ciphertext.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	recipient, err := age.NewScryptRecipient(v.secret)
	if err != nil {
		return "", fmt.Errorf("vault: creating recipient: %w", err)
	}
	recipient.SetWorkFactor(v.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("vault: creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("vault: writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("vault: finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt reverses Encrypt. Every failure, including a wrong secret,
// wraps ErrDecryption.
func (v *Vault) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(ciphertext), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %v", ErrDecryption, err)
	}

	identity, err := age.NewScryptIdentity(v.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: creating identity: %v", ErrDecryption, err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

// EncryptJSON marshals v and encrypts it.
func (v *Vault) EncryptJSON(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vault: encoding credential: %w", err)
	}
	return v.Encrypt(b)
}

// DecryptJSON decrypts ciphertext and unmarshals it into dst. A payload
// that decrypts but is not a JSON object is reported as
// ErrMalformedCredential.
func (v *Vault) DecryptJSON(ciphertext string, dst any) error {
	plaintext, err := v.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return nil
}

// DecryptCredential returns the decrypted credential as a JSON string, after
// checking that it is a JSON object.
func (v *Vault) DecryptCredential(ciphertext string) (string, error) {
	var obj map[string]json.RawMessage
	plaintext, err := v.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return string(plaintext), nil
}
