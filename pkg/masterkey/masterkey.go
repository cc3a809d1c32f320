// Package masterkey provides a reference implementation of the narrow
// master-key-manager interface the identity store consumes
// (identitystore.MasterKeyManager): ActiveKeyID, Encrypt, Decrypt.
//
// The identity store never talks to this package directly by type; it only
// ever sees the interface. This implementation exists so the store is
// runnable and testable standalone, the same way a production deployment
// would plug in a real KMS/Vault-backed manager.
//
// Modeled on LeeDigitalWorks-zapfs/pkg/iam/kms.go and
// LeeDigitalWorks-zapfs/pkg/iam/crypto.go, but key material for each
// generation is derived from a single root secret via HKDF-SHA256 rather
// than generated independently at random, so a KeyRing's rotation history
// is reproducible from (rootSecret, generation count) alone -- useful for
// tests that need to pin down a specific rotation sequence.
package masterkey

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Errors returned by KeyRing operations.
var (
	ErrKeyNotFound      = errors.New("master key: generation not found")
	ErrCiphertextShort  = errors.New("master key: ciphertext shorter than nonce")
	ErrDecryptionFailed = errors.New("master key: decryption failed")
)

// generation holds one rotation's key material.
type generation struct {
	id        string
	createdAt time.Time
	key       []byte // 32 bytes, AES-256
}

// KeyRing is a rotating ring of AES-256-GCM keys. Generation zero is
// created by Init; Rotate appends a new generation and makes it active.
// Every generation remains available for Decrypt so ciphertexts produced
// before a rotation stay readable, matching spec.md's requirement that the
// store "tolerate rotation" by recording master_key_id per ciphertext.
type KeyRing struct {
	mu         sync.RWMutex
	rootSecret []byte
	gens       map[string]*generation
	order      []string
	activeID   string
}

// NewKeyRing creates a KeyRing deriving key material from rootSecret, which
// must be at least 32 bytes of entropy. Init must be called once before use.
func NewKeyRing(rootSecret []byte) (*KeyRing, error) {
	if len(rootSecret) < 32 {
		return nil, fmt.Errorf("master key: root secret must be at least 32 bytes, got %d", len(rootSecret))
	}
	secret := make([]byte, len(rootSecret))
	copy(secret, rootSecret)
	return &KeyRing{
		rootSecret: secret,
		gens:       make(map[string]*generation),
	}, nil
}

// GenerateRootSecret returns 32 bytes of random entropy suitable for
// NewKeyRing, for environments bootstrapping a fresh ring.
func GenerateRootSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("master key: generate root secret: %w", err)
	}
	return secret, nil
}

// Init idempotently ensures a generation-0 key exists and is active. Safe
// to call on every process start, matching the narrow interface's
// documented init() contract.
func (r *KeyRing) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) > 0 {
		return nil
	}
	return r.rotateLocked()
}

// Rotate derives and activates the next generation's key.
func (r *KeyRing) Rotate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.rotateLocked(); err != nil {
		return "", err
	}
	return r.activeID, nil
}

func (r *KeyRing) rotateLocked() error {
	n := len(r.order)
	id := "mk-" + strconv.Itoa(n)

	key := make([]byte, 32)
	info := []byte("noobaa-iam-master-key:" + id)
	kdf := hkdf.New(sha256.New, r.rootSecret, nil, info)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return fmt.Errorf("master key: derive generation %d: %w", n, err)
	}

	r.gens[id] = &generation{id: id, createdAt: time.Now(), key: key}
	r.order = append(r.order, id)
	r.activeID = id
	return nil
}

// ActiveKeyID returns the currently active generation's identifier.
func (r *KeyRing) ActiveKeyID(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return "", errors.New("master key: key ring not initialized")
	}
	return r.activeID, nil
}

// Encrypt encrypts plaintext under the named generation using AES-256-GCM,
// returning nonce||ciphertext||tag.
func (r *KeyRing) Encrypt(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	gen, err := r.generation(keyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(gen.key)
	if err != nil {
		return nil, fmt.Errorf("master key: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("master key: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("master key: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt under the same keyID.
func (r *KeyRing) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	gen, err := r.generation(keyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(gen.key)
	if err != nil {
		return nil, fmt.Errorf("master key: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("master key: new gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextShort
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (r *KeyRing) generation(keyID string) (*generation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gen, ok := r.gens[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return gen, nil
}
