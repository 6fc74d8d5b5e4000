package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"inboxd/pkg/models"
)

const (
	envelopeVersion = 1
	envelopeAlg     = "chacha20-poly1305"
)

// ErrDecryptFailed reports a corrupt or tampered envelope. It must surface
// to the caller; decryption failures are never silently swallowed.
var ErrDecryptFailed = errors.New("envelope decryption failed")

// Box performs reversible envelope encryption of message content at rest.
// The cipher key is derived as sha256 of the configured secret; with no
// secret configured the box is inactive and Wrap/Unwrap are identities.
type Box struct {
	key []byte
}

// NewBox derives a box from the configured secret. An empty secret yields
// an inactive box.
func NewBox(secret string) *Box {
	if secret == "" {
		return &Box{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Box{key: sum[:]}
}

// Active reports whether an encryption key is configured.
func (b *Box) Active() bool { return len(b.key) > 0 }

// Wrap serializes content and seals it under a fresh random nonce. Returns
// (nil, nil) when the box is inactive.
func (b *Box) Wrap(content models.Content) (*models.Envelope, error) {
	if !b.Active() {
		return nil, nil
	}
	plain, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}
	aead, err := chacha20poly1305.New(b.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plain, nil)
	// Seal appends the 16-byte authentication tag; store it separately so
	// the envelope shape is self-describing.
	ct, tag := sealed[:len(sealed)-aead.Overhead()], sealed[len(sealed)-aead.Overhead():]
	return &models.Envelope{
		V:     envelopeVersion,
		Alg:   envelopeAlg,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Tag:   base64.StdEncoding.EncodeToString(tag),
		Data:  base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Unwrap decrypts an envelope back into content. Envelopes that do not
// structurally match the expected shape pass through as absent (historical
// plaintext tolerance); an authentication failure is a hard error.
func (b *Box) Unwrap(env *models.Envelope) (models.Content, bool, error) {
	if !b.Active() || !isEnvelope(env) {
		return models.Content{}, false, nil
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return models.Content{}, false, fmt.Errorf("%w: bad nonce encoding", ErrDecryptFailed)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return models.Content{}, false, fmt.Errorf("%w: bad tag encoding", ErrDecryptFailed)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return models.Content{}, false, fmt.Errorf("%w: bad data encoding", ErrDecryptFailed)
	}
	aead, err := chacha20poly1305.New(b.key)
	if err != nil {
		return models.Content{}, false, err
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return models.Content{}, false, fmt.Errorf("%w: bad nonce size", ErrDecryptFailed)
	}
	plain, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return models.Content{}, false, ErrDecryptFailed
	}
	var content models.Content
	if err := json.Unmarshal(plain, &content); err != nil {
		return models.Content{}, false, fmt.Errorf("%w: bad plaintext", ErrDecryptFailed)
	}
	return content, true, nil
}

// isEnvelope checks the structural shape: version, algorithm tag and all
// three byte fields present.
func isEnvelope(env *models.Envelope) bool {
	return env != nil &&
		env.V == envelopeVersion &&
		env.Alg == envelopeAlg &&
		env.Nonce != "" && env.Tag != "" && env.Data != ""
}
