package identitystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RecreatesMissingSymlink(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)
	key, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	require.NoError(t, store.symlinks.remove(key.AccessKey))
	assert.False(t, store.symlinks.exists(key.AccessKey))

	report, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Contains(t, report.SymlinksCreated, key.AccessKey)
	assert.Empty(t, report.SymlinksRemoved)

	resolved, err := store.symlinks.resolve(key.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, "Bob", resolved)
}

func TestReconcile_RemovesDanglingSymlink(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)
	key, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	account, err := store.configFiles.readAccount(ctx, "Bob")
	require.NoError(t, err)
	account.AccessKeys = nil
	require.NoError(t, store.configFiles.updateAccount(ctx, account))

	report, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Contains(t, report.SymlinksRemoved, key.AccessKey)
	assert.Empty(t, report.SymlinksCreated)
	assert.False(t, store.symlinks.exists(key.AccessKey))
}

func TestReconcile_NoOpWhenConsistent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)
	_, err = store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	report, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.SymlinksCreated)
	assert.Empty(t, report.SymlinksRemoved)
}

// P1: after a sequence of successful operations, the store-wide invariants
// (every symlink resolves to an account that carries the matching key, and
// no account exceeds the key quota) still hold -- checked here via a
// Reconcile pass that must find nothing to repair.
func TestInvariants_HoldAfterOperationSequence(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Nora", "")
	require.NoError(t, err)
	k1, err := store.CreateAccessKey(ctx, session(root), "Nora")
	require.NoError(t, err)
	_, err = store.CreateAccessKey(ctx, session(root), "Nora")
	require.NoError(t, err)
	require.NoError(t, store.DeleteAccessKey(ctx, session(root), k1.AccessKey))

	newName := "Norah"
	_, err = store.UpdateUser(ctx, session(root), "Nora", &newName, nil)
	require.NoError(t, err)

	report, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.SymlinksCreated, "I2/I3: every remaining key's symlink must already resolve correctly")
	assert.Empty(t, report.SymlinksRemoved, "I3: no dangling symlink should remain")

	account, err := store.configFiles.readAccount(ctx, "Norah")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(account.AccessKeys), MaxAccessKeysPerAccount, "I4")
	assert.Equal(t, "Norah", account.Name, "I1")
}
