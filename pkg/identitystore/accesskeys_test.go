package identitystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirady/noobaa-core/pkg/iamerr"
	"github.com/shirady/noobaa-core/pkg/masterkey"
)

// Scenario 1: create user, create two keys, rotate status.
func TestAccessKeyLifecycle_Scenario1(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)

	ak1, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)
	assert.Len(t, ak1.AccessKey, 20)
	assert.Len(t, ak1.SecretKey, 40)
	assert.Equal(t, AccessKeyActive, ak1.Status)

	resolved, err := store.symlinks.resolve(ak1.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, "Bob", resolved)

	ak2, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)
	assert.NotEqual(t, ak1.AccessKey, ak2.AccessKey)

	// B1: third key exceeds the quota.
	_, err = store.CreateAccessKey(ctx, session(root), "Bob")
	assert.True(t, iamerr.Is(err, iamerr.KindLimitExceeded))

	require.NoError(t, store.UpdateAccessKey(ctx, session(root), ak1.AccessKey, AccessKeyInactive))

	list, err := store.ListAccessKeys(ctx, session(root), "Bob")
	require.NoError(t, err)
	require.Len(t, list.Members, 2)

	var sorted []string
	for _, m := range list.Members {
		sorted = append(sorted, m.AccessKey)
	}
	assert.True(t, sorted[0] < sorted[1], "members must be sorted by access_key ascending")

	statusByKey := map[string]AccessKeyStatus{}
	for _, m := range list.Members {
		statusByKey[m.AccessKey] = m.Status
	}
	assert.Equal(t, AccessKeyInactive, statusByKey[ak1.AccessKey])
	assert.Equal(t, AccessKeyActive, statusByKey[ak2.AccessKey])
}

// P2: round-trip.
func TestCreateAccessKey_RoundTrip(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")
	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)

	created, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	require.NoError(t, store.UpdateAccessKey(ctx, session(root), created.AccessKey, created.Status))

	list, err := store.ListAccessKeys(ctx, session(root), "Bob")
	require.NoError(t, err)
	require.Len(t, list.Members, 1)
	assert.Equal(t, created.AccessKey, list.Members[0].AccessKey)
	assert.Equal(t, created.Status, list.Members[0].Status)
}

// P3: idempotent no-op leaves the master_key_id (and thus the file)
// untouched when the active master key is rotated in between.
func TestUpdateAccessKey_NoOpDoesNotRewrite(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")
	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)

	created, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	before, err := store.configFiles.readAccount(ctx, "Bob")
	require.NoError(t, err)

	ring, ok := store.masterKeys.(*masterkey.KeyRing)
	require.True(t, ok)
	_, err = ring.Rotate(ctx)
	require.NoError(t, err)

	require.NoError(t, store.UpdateAccessKey(ctx, session(root), created.AccessKey, AccessKeyActive))

	after, err := store.configFiles.readAccount(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, before.MasterKeyID, after.MasterKeyID)
	assert.Equal(t, before.AccessKeys[0].EncryptedSecretKey, after.AccessKeys[0].EncryptedSecretKey)
}

// P5: delete cleanup.
func TestDeleteAccessKey_Cleanup(t *testing.T) {
	t.Parallel()
	store, invalidator := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")
	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)

	created, err := store.CreateAccessKey(ctx, session(root), "Bob")
	require.NoError(t, err)

	require.NoError(t, store.DeleteAccessKey(ctx, session(root), created.AccessKey))

	_, err = store.symlinks.resolve(created.AccessKey)
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))

	account, err := store.configFiles.readAccount(ctx, "Bob")
	require.NoError(t, err)
	assert.False(t, account.HasAccessKey(created.AccessKey))
	assert.True(t, invalidator.invalidated(created.AccessKey))
}

func TestDeleteAccessKey_UnknownKey(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	err := store.DeleteAccessKey(context.Background(), session(root), "AKIA0000000000000000")
	assert.True(t, iamerr.Is(err, iamerr.KindAccessDenied))
}

// Scenario 4: IAM user acts on itself.
func TestAccessKey_UserActsOnSelf(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Alice", "")
	require.NoError(t, err)
	_, err = store.CreateAccessKey(ctx, session(root), "Alice")
	require.NoError(t, err)

	alice, err := store.configFiles.readAccount(ctx, "Alice")
	require.NoError(t, err)

	_, err = store.CreateAccessKey(ctx, session(alice), "")
	require.NoError(t, err)

	_, err = store.CreateAccessKey(ctx, session(alice), "Bob")
	assert.True(t, iamerr.Is(err, iamerr.KindAccessDenied))
}

// Scenario 6: schema violation.
func TestCreateUser_SchemaViolation(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	uid := 0
	root.NSFSAccountConfig = &NSFSAccountConfig{
		UID:            &uid,
		NewBucketsPath: "/buckets",
	}
	dn := "cn=someone"
	root.NSFSAccountConfig.DistinguishedName = &dn // both forms set: invalid

	_, err := store.CreateUser(ctx, session(root), "Broken", "")
	require.Error(t, err)
	assert.True(t, iamerr.Is(err, iamerr.KindValidationError))

	_, readErr := store.configFiles.readAccount(ctx, "Broken")
	assert.True(t, iamerr.Is(readErr, iamerr.KindNoSuchEntity), "no file must be written on a validation failure")
}
