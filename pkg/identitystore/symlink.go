package identitystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/shirady/noobaa-core/pkg/iamerr"
)

// symlinkIndexEngine creates and removes entries in the access-key index.
// The engine never follows symlinks to write an account file -- writes
// always go through the canonical <accounts>/<name>.json path.
type symlinkIndexEngine struct {
	paths pathResolver
}

func newSymlinkIndexEngine(paths pathResolver) *symlinkIndexEngine {
	return &symlinkIndexEngine{paths: paths}
}

// create links <access_keys>/<accessKey>.symlink to the account file named
// accountName, using a relative target so the index survives relocation
// of the configuration root.
func (e *symlinkIndexEngine) create(accessKey, accountName string) error {
	target := accountRelativeTarget(accountName)
	path := e.paths.accessKeyPath(accessKey)

	if err := os.Symlink(target, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return iamerr.New(iamerr.KindEntityAlreadyExists,
				fmt.Sprintf("access key %q already indexed", accessKey))
		}
		return iamerr.FromErrno(err)
	}
	return nil
}

// remove unlinks <access_keys>/<accessKey>.symlink.
func (e *symlinkIndexEngine) remove(accessKey string) error {
	err := os.Remove(e.paths.accessKeyPath(accessKey))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return iamerr.FromErrno(err)
	}
	return nil
}

// resolve reads the symlink target and returns the account name it points
// to. A missing or dangling symlink (target file absent) is treated as
// NoSuchEntity on read, matching spec.md §4.3.
func (e *symlinkIndexEngine) resolve(accessKey string) (string, error) {
	path := e.paths.accessKeyPath(accessKey)

	target, err := os.Readlink(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", iamerr.New(iamerr.KindNoSuchEntity,
				fmt.Sprintf("access key %q not found", accessKey))
		}
		return "", iamerr.FromErrno(err)
	}

	accountFile := target[len("../accounts/"):]
	name := nameFromAccountFile(accountFile)

	if _, err := os.Stat(e.paths.accountPath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", iamerr.New(iamerr.KindNoSuchEntity,
				fmt.Sprintf("access key %q points at a missing account", accessKey))
		}
		return "", iamerr.FromErrno(err)
	}

	return name, nil
}

// exists reports whether an index entry for accessKey is present, without
// verifying its target resolves (used by the reconciler).
func (e *symlinkIndexEngine) exists(accessKey string) bool {
	_, err := os.Lstat(e.paths.accessKeyPath(accessKey))
	return err == nil
}
