package identitystore

import (
	"path/filepath"
	"strings"
)

const (
	accountsDirName   = "accounts"
	accessKeysDirName = "access_keys"

	accountFileExt    = ".json"
	accessKeySymlinkExt = ".symlink"

	// tempFileMarker appears in every temp file created by the atomic
	// write path; directory scans skip any entry whose name contains it.
	tempFileMarker = ".tmp-"
)

// pathResolver maps entity identifiers to on-disk paths under a single
// configuration root. Names are used verbatim: the store assumes they have
// already been validated by the upstream request parser and contain no
// path separators.
type pathResolver struct {
	root string
}

func newPathResolver(root string) pathResolver {
	return pathResolver{root: root}
}

// accountsDir is <root>/accounts.
func (p pathResolver) accountsDir() string {
	return filepath.Join(p.root, accountsDirName)
}

// accessKeysDir is <root>/access_keys.
func (p pathResolver) accessKeysDir() string {
	return filepath.Join(p.root, accessKeysDirName)
}

// accountPath is <root>/accounts/<name>.json.
func (p pathResolver) accountPath(name string) string {
	return filepath.Join(p.accountsDir(), name+accountFileExt)
}

// accessKeyPath is <root>/access_keys/<accessKey>.symlink.
func (p pathResolver) accessKeyPath(accessKey string) string {
	return filepath.Join(p.accessKeysDir(), accessKey+accessKeySymlinkExt)
}

// accountRelativeTarget is the relative symlink target used when creating
// an access-key index entry: ../accounts/<name>.json. Relative so the index
// survives relocation of the configuration root.
func accountRelativeTarget(name string) string {
	return filepath.Join("..", accountsDirName, name+accountFileExt)
}

// nameFromAccountFile strips the directory and .json extension from an
// account file's basename.
func nameFromAccountFile(fileName string) string {
	return fileName[:len(fileName)-len(accountFileExt)]
}

// isTempFile reports whether fileName carries the temporary-file marker,
// the way list scans and directory walks must skip it.
func isTempFile(fileName string) bool {
	return strings.Contains(fileName, tempFileMarker)
}
