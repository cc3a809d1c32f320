package identitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shirady/noobaa-core/pkg/iamerr"
	"github.com/shirady/noobaa-core/pkg/logger"
)

const (
	accountFileMode = 0o600
	directoryMode   = 0o700
)

// configFileEngine is the atomic create/read/update/delete layer over
// account JSON files: every write goes through write-to-temp → fsync →
// rename, and every write is preceded by schema validation against the
// Account struct tags.
type configFileEngine struct {
	paths    pathResolver
	validate *validator.Validate
}

func newConfigFileEngine(paths pathResolver) (*configFileEngine, error) {
	if err := os.MkdirAll(paths.accountsDir(), directoryMode); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}
	if err := os.MkdirAll(paths.accessKeysDir(), directoryMode); err != nil {
		return nil, fmt.Errorf("create access_keys dir: %w", err)
	}
	return &configFileEngine{paths: paths, validate: validator.New()}, nil
}

// validateAccount runs the struct-tag schema validation plus the one rule
// validator.v10 tags can't express on their own: nsfs_account_config must
// carry exactly one of {uid, gid} or {distinguished_name}, never both and
// never neither.
func (e *configFileEngine) validateAccount(account *Account) error {
	if err := e.validate.Struct(account); err != nil {
		return iamerr.New(iamerr.KindValidationError, err.Error())
	}
	if cfg := account.NSFSAccountConfig; cfg != nil {
		mixed := (cfg.UID != nil || cfg.GID != nil) && cfg.UsesDistinguishedName()
		if mixed || cfg.UsesPOSIXIdentity() == cfg.UsesDistinguishedName() {
			return iamerr.New(iamerr.KindValidationError,
				"nsfs_account_config must carry exactly one of {uid, gid} or {distinguished_name}")
		}
	}
	return nil
}

// createAccount serializes account, validates it, and atomically writes it
// to <accounts>/<name>.json. Fails with EntityAlreadyExists if the file is
// already present.
func (e *configFileEngine) createAccount(ctx context.Context, account *Account) error {
	if err := e.validateAccount(account); err != nil {
		return err
	}

	path := e.paths.accountPath(account.Name)
	if _, err := os.Lstat(path); err == nil {
		return iamerr.New(iamerr.KindEntityAlreadyExists,
			fmt.Sprintf("account %q already exists", account.Name))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return iamerr.FromErrno(err)
	}

	return e.atomicWrite(ctx, path, account)
}

// readAccount reads and unmarshals the account file at <accounts>/<name>.json.
func (e *configFileEngine) readAccount(ctx context.Context, name string) (*Account, error) {
	data, err := os.ReadFile(e.paths.accountPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, iamerr.New(iamerr.KindNoSuchEntity, fmt.Sprintf("account %q not found", name))
		}
		return nil, iamerr.FromErrno(err)
	}

	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("corrupt account file %q: %v", name, err))
	}
	return &account, nil
}

// updateAccount validates account and atomically overwrites the existing
// file at <accounts>/<name>.json in place.
func (e *configFileEngine) updateAccount(ctx context.Context, account *Account) error {
	if err := e.validateAccount(account); err != nil {
		return err
	}
	return e.atomicWrite(ctx, e.paths.accountPath(account.Name), account)
}

// deleteAccount unlinks <accounts>/<name>.json. When tolerateNotFound is
// false, a missing file is propagated as NoSuchEntity; callers that already
// know the file may be gone (e.g. reconciliation) pass true.
func (e *configFileEngine) deleteAccount(ctx context.Context, name string, tolerateNotFound bool) error {
	err := os.Remove(e.paths.accountPath(name))
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if tolerateNotFound {
			return nil
		}
		return iamerr.New(iamerr.KindNoSuchEntity, fmt.Sprintf("account %q not found", name))
	}
	return iamerr.FromErrno(err)
}

// atomicWrite serializes v, writes it to a sibling temp file in dir(path)
// with a unique suffix, fsyncs, and renames into place. Readers of path see
// either no file or the complete file, never a partial write.
func (e *configFileEngine) atomicWrite(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return iamerr.New(iamerr.KindServiceFailure, fmt.Sprintf("marshal account: %v", err))
	}

	dir := filepath.Dir(path)
	tempPath := filepath.Join(dir, tempFileMarker+uuid.NewString()+accountFileExt)

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, accountFileMode)
	if err != nil {
		return iamerr.FromErrno(err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return iamerr.FromErrno(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return iamerr.FromErrno(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return iamerr.FromErrno(err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		logger.Ctx(ctx).Error().Err(err).Str("path", path).Msg("atomic rename failed")
		return iamerr.FromErrno(err)
	}
	return nil
}
