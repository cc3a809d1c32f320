package identitystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shirady/noobaa-core/pkg/iamerr"
)

func TestCreateUser(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	view, err := store.CreateUser(context.Background(), session(root), "Bob", "")
	require.NoError(t, err)
	assert.Equal(t, "Bob", view.Username)
	assert.Equal(t, "/", view.IAMPath)
	assert.Equal(t, "arn:aws:iam:111111111111111111111111:user/Bob", view.ARN)
}

func TestCreateUser_RequiresRoot(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	root := seedRoot(t, store, "111111111111111111111111", "root1")
	ctx := context.Background()

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)
	bob, err := store.configFiles.readAccount(ctx, "Bob")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, session(bob), "Carol", "")
	assert.True(t, iamerr.Is(err, iamerr.KindAccessDenied))
}

// B3: create_user with a name that matches an existing account file yields
// EntityAlreadyExists.
func TestCreateUser_Duplicate(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Bob", "")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, session(root), "Bob", "")
	assert.True(t, iamerr.Is(err, iamerr.KindEntityAlreadyExists))
}

// Scenario 2: rename user.
func TestUpdateUser_Rename(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Robert", "")
	require.NoError(t, err)

	newName := "Roberta"
	_, err = store.UpdateUser(ctx, session(root), "Robert", &newName, nil)
	require.NoError(t, err)

	_, err = store.configFiles.readAccount(ctx, "Robert")
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))

	view, err := store.GetUser(ctx, session(root), "Roberta")
	require.NoError(t, err)
	assert.Equal(t, "Roberta", view.Username)
}

// P4: rename round-trip.
func TestUpdateUser_RenameRoundTrip(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "A", "")
	require.NoError(t, err)

	nameB := "B"
	_, err = store.UpdateUser(ctx, session(root), "A", &nameB, nil)
	require.NoError(t, err)

	nameA := "A"
	_, err = store.UpdateUser(ctx, session(root), "B", &nameA, nil)
	require.NoError(t, err)

	final, err := store.configFiles.readAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", final.Name)

	_, err = store.configFiles.readAccount(ctx, "B")
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))
}

// Rename re-points access-key symlinks at the new account file (the
// corrected protocol decided in SPEC_FULL.md §10).
func TestUpdateUser_RenamePreservesAccessKeyResolution(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Dana", "")
	require.NoError(t, err)
	keyView, err := store.CreateAccessKey(ctx, session(root), "Dana")
	require.NoError(t, err)

	newName := "Dena"
	_, err = store.UpdateUser(ctx, session(root), "Dana", &newName, nil)
	require.NoError(t, err)

	resolved, err := store.symlinks.resolve(keyView.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, "Dena", resolved)
}

// B2 / Scenario 5: delete_user guard.
func TestDeleteUser_Guard(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Alice", "")
	require.NoError(t, err)
	key1, err := store.CreateAccessKey(ctx, session(root), "Alice")
	require.NoError(t, err)
	key2, err := store.CreateAccessKey(ctx, session(root), "Alice")
	require.NoError(t, err)

	err = store.DeleteUser(ctx, session(root), "Alice")
	require.Error(t, err)
	assert.True(t, iamerr.Is(err, iamerr.KindDeleteConflict))

	_, err = store.configFiles.readAccount(ctx, "Alice")
	require.NoError(t, err, "account file must remain present after a DeleteConflict")

	require.NoError(t, store.DeleteAccessKey(ctx, session(root), key1.AccessKey))
	require.NoError(t, store.DeleteAccessKey(ctx, session(root), key2.AccessKey))

	require.NoError(t, store.DeleteUser(ctx, session(root), "Alice"))
	_, err = store.configFiles.readAccount(ctx, "Alice")
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))
}

// Scenario 3: cross-tenant isolation.
func TestCrossTenantIsolation(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	r1 := seedRoot(t, store, "111111111111111111111111", "root1")
	r2 := seedRoot(t, store, "222222222222222222222222", "root2")

	_, err := store.CreateUser(ctx, session(r1), "Bob", "")
	require.NoError(t, err)

	_, err = store.GetUser(ctx, session(r2), "Bob")
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))

	_, err = store.CreateAccessKey(ctx, session(r2), "Bob")
	assert.True(t, iamerr.Is(err, iamerr.KindNoSuchEntity))

	key, err := store.CreateAccessKey(ctx, session(r1), "Bob")
	require.NoError(t, err)

	err = store.UpdateAccessKey(ctx, session(r2), key.AccessKey, AccessKeyInactive)
	assert.True(t, iamerr.Is(err, iamerr.KindAccessDenied))
}

// B5: list_users with an unmatched prefix returns an empty, non-truncated
// result.
func TestListUsers_UnmatchedPrefix(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	_, err := store.CreateUser(ctx, session(root), "Eve", "")
	require.NoError(t, err)

	result, err := store.ListUsers(ctx, session(root), "/nonexistent/")
	require.NoError(t, err)
	assert.Empty(t, result.Members)
	assert.False(t, result.IsTruncated)
}

func TestListUsers_SortedByUsername(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	root := seedRoot(t, store, "111111111111111111111111", "root1")

	for _, name := range []string{"Zack", "Amy", "Mary"} {
		_, err := store.CreateUser(ctx, session(root), name, "")
		require.NoError(t, err)
	}

	result, err := store.ListUsers(ctx, session(root), "")
	require.NoError(t, err)
	require.Len(t, result.Members, 3)
	assert.Equal(t, []string{"Amy", "Mary", "Zack"}, []string{
		result.Members[0].Username, result.Members[1].Username, result.Members[2].Username,
	})
}
