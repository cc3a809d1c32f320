package identitystore

import (
	"context"
	"fmt"

	"github.com/shirady/noobaa-core/pkg/iamerr"
	"github.com/shirady/noobaa-core/pkg/logger"
)

// CreateUser creates a new IAM user owned by the requesting root account,
// copying master_key_id, allow_bucket_creation, force_md5_etag, and
// nsfs_account_config from the root.
func (s *Store) CreateUser(ctx context.Context, session Session, username, iamPath string) (*UserView, error) {
	requester := session.RequestingAccount
	if err := requireRoot(requester); err != nil {
		return nil, err
	}

	if iamPath == "" {
		iamPath = "/"
	}

	id, err := generateAccountID()
	if err != nil {
		return nil, iamerr.New(iamerr.KindServiceFailure, err.Error())
	}

	account := &Account{
		ID:                  id,
		Name:                username,
		Email:               username,
		CreationDate:        s.now(),
		Owner:               requester.ID,
		Creator:             requester.ID,
		IAMPath:             iamPath,
		MasterKeyID:         requester.MasterKeyID,
		AllowBucketCreation: requester.AllowBucketCreation,
		ForceMD5ETag:        requester.ForceMD5ETag,
		AccessKeys:          []AccessKey{},
		NSFSAccountConfig:   requester.NSFSAccountConfig,
	}

	if err := s.configFiles.createAccount(ctx, account); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("username", username).Str("root_id", requester.ID).Msg("created iam user")
	return accountToUserView(account), nil
}

// GetUser returns the target IAM user's wire view, enforcing that the
// requester is the owning root.
func (s *Store) GetUser(ctx context.Context, session Session, username string) (*UserView, error) {
	requester := session.RequestingAccount

	target, err := s.loadTarget(ctx, username, requester)
	if err != nil {
		return nil, err
	}

	if err := requireRootOwnsIAMUser(requester, target); err != nil {
		return nil, err
	}

	view := accountToUserView(target)
	// password_last_used is a synthetic placeholder; real tracking is
	// unimplemented (Design Notes, open question).
	zero := s.now()
	view.PasswordLastUsed = &zero
	return view, nil
}

// UpdateUser patches iam_path and/or renames an IAM user. Renaming runs the
// corrected protocol: write new account file → re-symlink every access key
// → delete old account file → invalidate cache, fixing the dangling-symlink
// defect spec.md narrates as known and unfixed (Design Notes decision).
func (s *Store) UpdateUser(ctx context.Context, session Session, username string, newUsername, newIAMPath *string) (*UserView, error) {
	requester := session.RequestingAccount

	target, err := s.configFiles.readAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := requireRootOwnsIAMUser(requester, target); err != nil {
		return nil, err
	}

	if newIAMPath != nil {
		target.IAMPath = *newIAMPath
	}

	if newUsername != nil && *newUsername != target.Name {
		if err := s.renameAccount(ctx, target, *newUsername); err != nil {
			return nil, err
		}
	} else if newIAMPath != nil {
		if err := s.configFiles.updateAccount(ctx, target); err != nil {
			return nil, err
		}
	}

	s.invalidateAccessKeys(ctx, target)
	return accountToUserView(target), nil
}

// renameAccount implements the corrected rename protocol decided in
// SPEC_FULL.md §10: write the account under its new name first, re-point
// every access-key symlink at that new name, then delete the old file.
func (s *Store) renameAccount(ctx context.Context, target *Account, newUsername string) error {
	oldName := target.Name
	oldEmail := target.Email

	if _, err := s.configFiles.readAccount(ctx, newUsername); err == nil {
		return iamerr.New(iamerr.KindEntityAlreadyExists,
			fmt.Sprintf("account %q already exists", newUsername))
	} else if !iamerr.Is(err, iamerr.KindNoSuchEntity) {
		return err
	}

	target.Name = newUsername
	if target.Email == oldName {
		target.Email = newUsername
	}

	if err := s.configFiles.createAccount(ctx, target); err != nil {
		target.Name = oldName
		target.Email = oldEmail
		return err
	}

	for _, key := range target.AccessKeys {
		if err := s.symlinks.remove(key.AccessKeyID); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("access_key", key.AccessKeyID).Msg("rename: failed to unlink old symlink")
		}
		if err := s.symlinks.create(key.AccessKeyID, newUsername); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("access_key", key.AccessKeyID).Msg("rename: failed to re-symlink access key")
			return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("re-symlink access key %q: %v", key.AccessKeyID, err))
		}
	}

	if err := s.configFiles.deleteAccount(ctx, oldName, false); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("old_name", oldName).Msg("rename: failed to delete old account file")
		return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("delete old account file %q: %v", oldName, err))
	}

	return nil
}

// DeleteUser removes an IAM user. Fails with DeleteConflict while the user
// still carries access keys (I7 guard).
func (s *Store) DeleteUser(ctx context.Context, session Session, username string) error {
	requester := session.RequestingAccount

	target, err := s.configFiles.readAccount(ctx, username)
	if err != nil {
		return err
	}
	if err := requireRootOwnsIAMUser(requester, target); err != nil {
		return err
	}

	if len(target.AccessKeys) > 0 {
		return iamerr.New(iamerr.KindDeleteConflict,
			fmt.Sprintf("user %q still has %d access key(s); delete them first", username, len(target.AccessKeys)))
	}

	if err := s.configFiles.deleteAccount(ctx, username, false); err != nil {
		return err
	}

	logger.Ctx(ctx).Info().Str("username", username).Msg("deleted iam user")
	return nil
}

// ListUsers enumerates IAM users owned by the requesting root, optionally
// filtered by an iam_path prefix, sorted by username ascending.
func (s *Store) ListUsers(ctx context.Context, session Session, iamPathPrefix string) (*ListUsersResult, error) {
	requester := session.RequestingAccount
	if err := requireRoot(requester); err != nil {
		return nil, err
	}

	accounts, err := s.scanAccounts(ctx, func(a *Account) bool {
		if a.Owner != requester.ID {
			return false
		}
		if iamPathPrefix != "" {
			if a.IAMPath == "" {
				return false
			}
			if !hasPathPrefix(a.IAMPath, iamPathPrefix) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	views := make([]UserView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, *accountToUserView(a))
	}
	sortUserViews(views)

	return &ListUsersResult{Members: views, IsTruncated: false}, nil
}

// loadTarget resolves the account named username, defaulting to the
// requester's own account when username is empty (the "act on myself"
// convention shared by several operations).
func (s *Store) loadTarget(ctx context.Context, username string, requester *Account) (*Account, error) {
	if username == "" {
		return requester, nil
	}
	return s.configFiles.readAccount(ctx, username)
}

func (s *Store) invalidateAccessKeys(ctx context.Context, account *Account) {
	for _, key := range account.AccessKeys {
		s.cacheInvalidator.Invalidate(ctx, key.AccessKeyID)
	}
}

func accountToUserView(a *Account) *UserView {
	return &UserView{
		UserID:     a.ID,
		Username:   a.Name,
		IAMPath:    a.IAMPath,
		ARN:        buildARN(a.Owner, a.IAMPath, a.Name),
		CreateDate: a.CreationDate,
	}
}
