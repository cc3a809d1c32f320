package identitystore

import "context"

// MasterKeyManager is the narrow external collaborator the access-key
// lifecycle uses to encrypt and decrypt secret key material. The store
// never manages key custody itself; it only calls this interface and
// records the key id returned by ActiveKeyID alongside every ciphertext it
// produces, so encrypted secrets remain decryptable across rotations.
//
// pkg/masterkey.KeyRing is a reference implementation.
type MasterKeyManager interface {
	// ActiveKeyID returns the identifier of the currently active key.
	ActiveKeyID(ctx context.Context) (string, error)
	// Encrypt encrypts plaintext under the named key.
	Encrypt(ctx context.Context, keyID string, plaintext []byte) ([]byte, error)
	// Decrypt decrypts ciphertext that was encrypted under the named key.
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// CacheInvalidator is the narrow external collaborator the store pushes
// invalidations to after any operation that changes account state. Missing
// an invalidation is a correctness bug: the cache is treated as
// authoritative for the access-key → account lookup used by the data
// plane.
//
// Injected at construction rather than reached for as a process-wide
// singleton, per the Design Notes ("cache invalidation is a side effect").
//
// cacheadapter.go's cacheInvalidatorAdapter is a reference implementation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, accessKey string)
}
