package identitystore

import (
	"context"
	"fmt"
	"sort"

	"github.com/shirady/noobaa-core/pkg/iamerr"
	"github.com/shirady/noobaa-core/pkg/logger"
)

// CreateAccessKey mints a new access key for the named user (or the
// requester itself when username is empty), subject to the two-key quota
// (I4). The returned secret_key is plaintext exactly once; it is never
// persisted or logged.
func (s *Store) CreateAccessKey(ctx context.Context, session Session, username string) (*AccessKeyView, error) {
	requester := session.RequestingAccount
	if err := requireRootOrSelfOnAccessKeyTarget(requester, username); err != nil {
		return nil, err
	}

	target, err := s.loadTarget(ctx, username, requester)
	if err != nil {
		return nil, err
	}

	if requester.Role().IsRoot() {
		if err := requireRootOwnsIAMUser(requester, target); err != nil {
			return nil, err
		}
	}

	slot := target.FreeSlot()
	if slot < 0 {
		return nil, iamerr.New(iamerr.KindLimitExceeded,
			fmt.Sprintf("account %q already has the maximum of %d access keys", target.Name, MaxAccessKeysPerAccount))
	}

	accessKeyID, secretKey, err := generateAccessKeyPair()
	if err != nil {
		return nil, iamerr.New(iamerr.KindServiceFailure, err.Error())
	}

	activeKeyID, err := s.masterKeys.ActiveKeyID(ctx)
	if err != nil {
		return nil, iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("resolve active master key: %v", err))
	}
	ciphertext, err := s.masterKeys.Encrypt(ctx, activeKeyID, []byte(secretKey))
	if err != nil {
		return nil, iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("encrypt access key secret: %v", err))
	}

	now := s.now()
	newKey := AccessKey{
		AccessKeyID:        accessKeyID,
		EncryptedSecretKey: ciphertext,
		CreationDate:       now,
		IsActive:           true,
		CreatorIdentity:    classifyCreatorIdentity(requester),
		MasterKeyID:        activeKeyID,
	}

	if slot == len(target.AccessKeys) {
		target.AccessKeys = append(target.AccessKeys, newKey)
	} else {
		target.AccessKeys[slot] = newKey
	}
	target.MasterKeyID = activeKeyID

	if err := s.configFiles.updateAccount(ctx, target); err != nil {
		return nil, err
	}

	// Account file is written before the symlink (spec.md §4.6 ordering): a
	// crash here leaves an access key without its index entry, recoverable
	// by Reconcile.
	if err := s.symlinks.create(accessKeyID, target.Name); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("access_key", accessKeyID).Msg("create: failed to index new access key")
		return nil, iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("index access key %q: %v", accessKeyID, err))
	}

	logger.Ctx(ctx).Info().Str("username", target.Name).Str("access_key", accessKeyID).Msg("created access key")

	return &AccessKeyView{
		Username:   target.Name,
		AccessKey:  accessKeyID,
		SecretKey:  secretKey,
		Status:     AccessKeyActive,
		CreateDate: now,
	}, nil
}

// UpdateAccessKey toggles an access key's status. A no-op request (status
// already matches) returns silently without rewriting the file (P3); any
// real change re-encrypts the secret under the currently active master key
// so ciphertext stays aligned with rotation on every mutating operation.
func (s *Store) UpdateAccessKey(ctx context.Context, session Session, accessKeyID string, status AccessKeyStatus) error {
	requester := session.RequestingAccount

	target, slot, err := s.resolveAccessKeyOwner(ctx, requester, accessKeyID)
	if err != nil {
		return err
	}

	wantActive := status == AccessKeyActive
	if target.AccessKeys[slot].IsActive == wantActive {
		return nil
	}

	activeKeyID, err := s.masterKeys.ActiveKeyID(ctx)
	if err != nil {
		return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("resolve active master key: %v", err))
	}

	current := &target.AccessKeys[slot]
	plaintext, err := s.masterKeys.Decrypt(ctx, current.MasterKeyID, current.EncryptedSecretKey)
	if err != nil {
		return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("decrypt access key secret: %v", err))
	}
	ciphertext, err := s.masterKeys.Encrypt(ctx, activeKeyID, plaintext)
	if err != nil {
		return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("re-encrypt access key secret: %v", err))
	}

	current.EncryptedSecretKey = ciphertext
	current.IsActive = wantActive
	current.MasterKeyID = activeKeyID
	target.MasterKeyID = activeKeyID

	if err := s.configFiles.updateAccount(ctx, target); err != nil {
		return err
	}

	s.invalidateAccessKeys(ctx, target)
	return nil
}

// DeleteAccessKey removes the matching slot and unlinks its symlink. An
// access key that fails to resolve through the index returns
// AccessDeniedException (not NoSuchEntity), matching AWS behavior for
// unknown key ids.
func (s *Store) DeleteAccessKey(ctx context.Context, session Session, accessKeyID string) error {
	requester := session.RequestingAccount

	target, slot, err := s.resolveAccessKeyOwner(ctx, requester, accessKeyID)
	if err != nil {
		return err
	}

	target.AccessKeys = append(target.AccessKeys[:slot], target.AccessKeys[slot+1:]...)

	if err := s.configFiles.updateAccount(ctx, target); err != nil {
		return err
	}
	if err := s.symlinks.remove(accessKeyID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("access_key", accessKeyID).Msg("delete: failed to unlink symlink")
		return err
	}

	s.cacheInvalidator.Invalidate(ctx, accessKeyID)
	logger.Ctx(ctx).Info().Str("username", target.Name).Str("access_key", accessKeyID).Msg("deleted access key")
	return nil
}

// GetAccessKeyLastUsed returns the (synthetic) last-used record for an
// access key. Region, service_name and last_used_date are placeholders;
// username is authoritative (Design Notes, open question).
func (s *Store) GetAccessKeyLastUsed(ctx context.Context, session Session, accessKeyID string) (*AccessKeyLastUsed, error) {
	requester := session.RequestingAccount

	accountName, err := s.symlinks.resolve(accessKeyID)
	if err != nil {
		return nil, iamerr.New(iamerr.KindAccessDenied,
			fmt.Sprintf("access key %q is not recognized", accessKeyID))
	}

	target, err := s.configFiles.readAccount(ctx, accountName)
	if err != nil {
		return nil, err
	}
	if err := requireSameRoot(requester, target); err != nil {
		return nil, err
	}

	return &AccessKeyLastUsed{
		Username:     target.Name,
		Region:       "",
		ServiceName:  "",
		LastUsedDate: s.now(),
	}, nil
}

// ListAccessKeys returns the target's access keys sorted by access_key
// ascending.
func (s *Store) ListAccessKeys(ctx context.Context, session Session, username string) (*ListAccessKeysResult, error) {
	requester := session.RequestingAccount
	if err := requireRootOrSelfOnAccessKeyTarget(requester, username); err != nil {
		return nil, err
	}

	target, err := s.loadTarget(ctx, username, requester)
	if err != nil {
		return nil, err
	}
	if requester.Role().IsRoot() && target.ID != requester.ID {
		if err := requireRootOwnsIAMUser(requester, target); err != nil {
			return nil, err
		}
	}

	members := make([]AccessKeyView, 0, len(target.AccessKeys))
	for _, key := range target.AccessKeys {
		members = append(members, AccessKeyView{
			Username:   target.Name,
			AccessKey:  key.AccessKeyID,
			Status:     key.Status(),
			CreateDate: key.CreationDate,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].AccessKey < members[j].AccessKey })

	return &ListAccessKeysResult{Username: target.Name, Members: members, IsTruncated: false}, nil
}

// resolveAccessKeyOwner resolves an access key through the symlink index
// to its owning account, enforces same-root authorization (and, for a User
// requester, that the key is its own), and returns the slot index of the
// matching key. Shared by UpdateAccessKey/DeleteAccessKey.
func (s *Store) resolveAccessKeyOwner(ctx context.Context, requester *Account, accessKeyID string) (*Account, int, error) {
	accountName, err := s.symlinks.resolve(accessKeyID)
	if err != nil {
		return nil, 0, iamerr.New(iamerr.KindAccessDenied,
			fmt.Sprintf("access key %q is not recognized", accessKeyID))
	}

	target, err := s.configFiles.readAccount(ctx, accountName)
	if err != nil {
		return nil, 0, err
	}
	if err := requireSameRoot(requester, target); err != nil {
		return nil, 0, err
	}
	if !requester.Role().IsRoot() && target.ID != requester.ID {
		return nil, 0, accessDenied(requester, target)
	}

	for i := range target.AccessKeys {
		if target.AccessKeys[i].AccessKeyID == accessKeyID {
			return target, i, nil
		}
	}
	return nil, 0, iamerr.New(iamerr.KindAccessDenied,
		fmt.Sprintf("access key %q is not recognized", accessKeyID))
}
