package secrets

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/kvmesh/sidecar/pkg/crypto/adaptive"
)

const (
	hkdfInfo = "meshsidecar-backend-credential-v1"
	keySize  = 32 // works for both AES-256-GCM and ChaCha20-Poly1305
)

// Store derives and caches one adaptive.Cipher per label from a single
// master secret, and uses it to encrypt/decrypt backend credentials.
// The zero value is not usable; build one with NewStore.
type Store struct {
	master []byte

	mu      sync.Mutex
	ciphers map[string]adaptive.Cipher
}

// NewStore builds a Store from a master secret. The secret is typically
// loaded once at process start from an operator-managed file or
// environment variable, never from the namespace spec itself.
func NewStore(masterSecret []byte) *Store {
	master := make([]byte, len(masterSecret))
	copy(master, masterSecret)
	return &Store{
		master:  master,
		ciphers: make(map[string]adaptive.Cipher),
	}
}

// Credential is a MySQL backend user/password pair encrypted at rest,
// scoped to the label its cipher was derived from.
type Credential struct {
	Label    string
	User     []byte
	Password []byte
}

// Encrypt seals user and password under a cipher derived for label.
func (s *Store) Encrypt(label string, user, password []byte) (*Credential, error) {
	c, err := s.cipherFor(label)
	if err != nil {
		return nil, err
	}
	encUser, err := c.Encrypt(user, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("secrets: encrypt user: %w", err)
	}
	encPassword, err := c.Encrypt(password, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("secrets: encrypt password: %w", err)
	}
	return &Credential{Label: label, User: encUser, Password: encPassword}, nil
}

// Decrypt recovers the plaintext user/password pair, the moment before
// it is used to build a MySQL handshake response.
func (s *Store) Decrypt(cred *Credential) (user, password []byte, err error) {
	c, err := s.cipherFor(cred.Label)
	if err != nil {
		return nil, nil, err
	}
	user, err = c.Decrypt(cred.User, []byte(cred.Label))
	if err != nil {
		return nil, nil, fmt.Errorf("secrets: decrypt user: %w", err)
	}
	password, err = c.Decrypt(cred.Password, []byte(cred.Label))
	if err != nil {
		return nil, nil, fmt.Errorf("secrets: decrypt password: %w", err)
	}
	return user, password, nil
}

// cipherFor returns the cached cipher for label, deriving and caching
// one on first use.
func (s *Store) cipherFor(label string) (adaptive.Cipher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.ciphers[label]; ok {
		return c, nil
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, s.master, []byte(label), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("secrets: derive key for %q: %w", label, err)
	}

	c, err := adaptive.New(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: build cipher for %q: %w", label, err)
	}
	s.ciphers[label] = c
	return c, nil
}
