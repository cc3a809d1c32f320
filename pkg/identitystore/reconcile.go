package identitystore

import (
	"context"
	"os"
	"strings"

	"github.com/shirady/noobaa-core/pkg/iamerr"
	"github.com/shirady/noobaa-core/pkg/logger"
)

// ReconcileReport summarizes the repairs a Reconcile pass made.
type ReconcileReport struct {
	SymlinksCreated []string
	SymlinksRemoved []string
}

// Reconcile scans accounts/*.json and access_keys/*.symlink in both
// directions and heals the index: it recreates any access key's missing
// symlink, and removes any symlink whose target account no longer carries
// that key or no longer exists. This is the maintenance operation
// spec.md §9 calls for ("An offline reconciler scans both directions to
// heal dangling symlinks and missing indices; expose it as a maintenance
// operation") but leaves unspecified in detail.
func (s *Store) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	accounts, err := s.scanAccounts(ctx, func(*Account) bool { return true })
	if err != nil {
		return nil, err
	}

	// Direction 1: every access key on every account must have a symlink.
	for _, account := range accounts {
		for _, key := range account.AccessKeys {
			if s.symlinks.exists(key.AccessKeyID) {
				continue
			}
			if err := s.symlinks.create(key.AccessKeyID, account.Name); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("access_key", key.AccessKeyID).Msg("reconcile: failed to recreate symlink")
				continue
			}
			report.SymlinksCreated = append(report.SymlinksCreated, key.AccessKeyID)
		}
	}

	// Direction 2: every symlink must resolve to an account that still
	// carries that key.
	byAccessKey := make(map[string]*Account, len(accounts))
	for _, account := range accounts {
		for _, key := range account.AccessKeys {
			byAccessKey[key.AccessKeyID] = account
		}
	}

	entries, err := os.ReadDir(s.paths.accessKeysDir())
	if err != nil {
		return nil, iamerr.FromErrno(err)
	}

	for _, entry := range entries {
		if entry.IsDir() || isTempFile(entry.Name()) {
			continue
		}
		accessKeyID := strings.TrimSuffix(entry.Name(), accessKeySymlinkExt)

		owner := byAccessKey[accessKeyID]
		if owner != nil {
			if name, err := s.symlinks.resolve(accessKeyID); err == nil && name == owner.Name {
				continue
			}
		}
		if err := s.symlinks.remove(accessKeyID); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("access_key", accessKeyID).Msg("reconcile: failed to remove dangling symlink")
			continue
		}
		report.SymlinksRemoved = append(report.SymlinksRemoved, accessKeyID)

		// The key still lives on an account: re-point its index entry there.
		if owner != nil {
			if err := s.symlinks.create(accessKeyID, owner.Name); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("access_key", accessKeyID).Msg("reconcile: failed to recreate symlink")
				continue
			}
			report.SymlinksCreated = append(report.SymlinksCreated, accessKeyID)
		}
	}

	logger.Ctx(ctx).Info().
		Int("symlinks_created", len(report.SymlinksCreated)).
		Int("symlinks_removed", len(report.SymlinksRemoved)).
		Msg("reconcile complete")

	return report, nil
}
