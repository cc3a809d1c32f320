package identitystore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shirady/noobaa-core/pkg/masterkey"
)

// recordingInvalidator is a CacheInvalidator test double that remembers
// every access key it was asked to invalidate, in call order.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, accessKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, accessKey)
}

func (r *recordingInvalidator) invalidated(accessKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.calls {
		if k == accessKey {
			return true
		}
	}
	return false
}

// newTestStore builds a Store rooted at a fresh temp directory, backed by a
// real in-memory masterkey.KeyRing (itself a lightweight reference
// implementation, so it doubles as the "in-memory MasterKeyManager test
// double") and a recordingInvalidator.
func newTestStore(t *testing.T) (*Store, *recordingInvalidator) {
	t.Helper()

	ctx := context.Background()
	root := t.TempDir()

	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	keyRing, err := masterkey.NewKeyRing(secret)
	require.NoError(t, err)
	require.NoError(t, keyRing.Init(ctx))

	invalidator := &recordingInvalidator{}

	store, err := NewStore(ctx, root, keyRing, invalidator)
	require.NoError(t, err)

	return store, invalidator
}

// seedRoot directly writes a root account file, bypassing CreateUser (this
// store never creates root accounts -- they are bootstrapped externally,
// per spec.md §3 Lifecycle).
func seedRoot(t *testing.T, store *Store, id, name string) *Account {
	t.Helper()

	account := &Account{
		ID:                  id,
		Name:                name,
		Email:               name,
		CreationDate:        time.Now(),
		IAMPath:             "/",
		MasterKeyID:         "mk-0",
		AllowBucketCreation: true,
		ForceMD5ETag:        false,
		AccessKeys:          []AccessKey{},
	}
	require.NoError(t, store.configFiles.createAccount(context.Background(), account))
	return account
}

func session(account *Account) Session {
	return Session{RequestingAccount: account}
}
