// Package identitystore implements the filesystem-native account and
// access-key identity store for an AWS-IAM-compatible control surface in
// front of an NSFS object-storage endpoint.
//
// It persists accounts (root accounts and their subordinate IAM users) and
// their access keys as files on a local filesystem, and services the IAM
// operations CreateUser, GetUser, UpdateUser, DeleteUser, ListUsers,
// CreateAccessKey, UpdateAccessKey, DeleteAccessKey, GetAccessKeyLastUsed,
// and ListAccessKeys.
package identitystore

import "time"

// AccessKeyStatus is the wire-exposed status of an access key. Persisted on
// disk as the boolean IsActive field, never round-tripped through any other
// spelling.
type AccessKeyStatus string

const (
	AccessKeyActive   AccessKeyStatus = "Active"
	AccessKeyInactive AccessKeyStatus = "Inactive"
)

// CreatorIdentity records who minted a given access key.
type CreatorIdentity string

const (
	CreatorRootAccount CreatorIdentity = "RootAccount"
	CreatorUser        CreatorIdentity = "User"
)

// MaxAccessKeysPerAccount is invariant I4: no account carries more than two
// access keys.
const MaxAccessKeysPerAccount = 2

// AccessKey is an access-key record embedded in an Account.
type AccessKey struct {
	AccessKeyID        string          `json:"access_key" validate:"required,len=20"`
	EncryptedSecretKey []byte          `json:"encrypted_secret_key" validate:"required"`
	CreationDate       time.Time       `json:"creation_date"`
	IsActive           bool            `json:"is_active"`
	CreatorIdentity    CreatorIdentity `json:"creator_identity" validate:"required,oneof=RootAccount User"`
	MasterKeyID        string          `json:"master_key_id" validate:"required"`
}

// Status returns the wire-exposed status for this key.
func (k *AccessKey) Status() AccessKeyStatus {
	if k.IsActive {
		return AccessKeyActive
	}
	return AccessKeyInactive
}

// NSFSAccountConfig carries the filesystem identity a NSFS account operates
// as. Exactly one of the two forms below is populated; ConfigFileEngine
// schema validation rejects any record violating that exclusivity.
type NSFSAccountConfig struct {
	UID               *int    `json:"uid,omitempty"`
	GID               *int    `json:"gid,omitempty"`
	DistinguishedName *string `json:"distinguished_name,omitempty"`
	NewBucketsPath    string  `json:"new_buckets_path" validate:"required"`
	FSBackend         string  `json:"fs_backend,omitempty"`
}

// UsesPOSIXIdentity reports whether this config carries the {uid, gid} form
// rather than the {distinguished_name} form.
func (c *NSFSAccountConfig) UsesPOSIXIdentity() bool {
	return c != nil && c.UID != nil && c.GID != nil
}

// UsesDistinguishedName reports whether this config carries the
// {distinguished_name} form.
func (c *NSFSAccountConfig) UsesDistinguishedName() bool {
	return c != nil && c.DistinguishedName != nil
}

// Account is the single persisted entity; it encodes both root accounts and
// IAM users. The on-disk filename (without extension) always equals Name
// (invariant I1).
type Account struct {
	ID                  string             `json:"id" validate:"required,len=24,hexadecimal"`
	Name                string             `json:"name" validate:"required"`
	Email               string             `json:"email"`
	CreationDate        time.Time          `json:"creation_date"`
	Owner               string             `json:"owner,omitempty"`
	Creator             string             `json:"creator,omitempty"`
	IAMPath             string             `json:"iam_path" validate:"required"`
	MasterKeyID         string             `json:"master_key_id"`
	AllowBucketCreation bool               `json:"allow_bucket_creation"`
	ForceMD5ETag        bool               `json:"force_md5_etag"`
	AccessKeys          []AccessKey        `json:"access_keys" validate:"max=2,dive"`
	NSFSAccountConfig   *NSFSAccountConfig `json:"nsfs_account_config,omitempty"`
}

// AccountRole is the tagged variant an Account's ownership graph is
// normalized into at load time, per the Design Notes: "model with a tagged
// variant rather than sentinel fields." Derived from Owner/ID, never
// persisted as a separate field.
type AccountRole struct {
	isRoot  bool
	ownerID string
}

// RoleRoot reports an account with no owning root.
func RoleRoot() AccountRole {
	return AccountRole{isRoot: true}
}

// RoleIAMUser reports an account owned by the root identified by ownerID.
func RoleIAMUser(ownerID string) AccountRole {
	return AccountRole{isRoot: false, ownerID: ownerID}
}

// IsRoot reports whether this role is a root account.
func (r AccountRole) IsRoot() bool {
	return r.isRoot
}

// RootID returns the id of the owning root account. For a root account this
// is its own id.
func (r AccountRole) RootID(selfID string) string {
	if r.isRoot {
		return selfID
	}
	return r.ownerID
}

// Role derives the account's role from its persisted Owner field: absent or
// self-referential Owner marks a root account, any other value marks an IAM
// user owned by that root.
func (a *Account) Role() AccountRole {
	if a.Owner == "" || a.Owner == a.ID {
		return RoleRoot()
	}
	return RoleIAMUser(a.Owner)
}

// HasAccessKey reports whether the account currently carries the given
// access key id.
func (a *Account) HasAccessKey(accessKeyID string) bool {
	for i := range a.AccessKeys {
		if a.AccessKeys[i].AccessKeyID == accessKeyID {
			return true
		}
	}
	return false
}

// FreeSlot returns the index of the first vacant access-key slot. Per
// spec: index 0 if the list is empty or slot 0 is vacant, else index 1.
// Returns -1 when both slots are occupied (I4 quota exhausted).
func (a *Account) FreeSlot() int {
	if len(a.AccessKeys) < MaxAccessKeysPerAccount {
		return len(a.AccessKeys)
	}
	return -1
}

// Session wraps the requesting account supplied by the (out-of-scope)
// session layer, per spec.md §3/§4.4. The identity store only ever
// consumes a Session, never reaches for ambient request state.
type Session struct {
	RequestingAccount *Account
}

// UserView is the wire-facing projection of an Account returned by
// CreateUser/GetUser/UpdateUser.
type UserView struct {
	UserID           string     `json:"user_id"`
	Username         string     `json:"username"`
	IAMPath          string     `json:"iam_path"`
	ARN              string     `json:"arn"`
	CreateDate       time.Time  `json:"create_date"`
	PasswordLastUsed *time.Time `json:"password_last_used,omitempty"`
}

// AccessKeyView is the wire-facing projection of a create_access_key
// result. SecretKey is populated only on creation, never on any other path.
type AccessKeyView struct {
	Username   string          `json:"username"`
	AccessKey  string          `json:"access_key"`
	SecretKey  string          `json:"secret_key,omitempty"`
	Status     AccessKeyStatus `json:"status"`
	CreateDate time.Time       `json:"create_date"`
}

// AccessKeyLastUsed is the result of GetAccessKeyLastUsed. Region,
// ServiceName and LastUsedDate are synthetic placeholders per the Design
// Notes ("do not guess semantics"); Username is authoritative.
type AccessKeyLastUsed struct {
	Username     string    `json:"username"`
	Region       string    `json:"region"`
	ServiceName  string    `json:"service_name"`
	LastUsedDate time.Time `json:"last_used_date"`
}

// ListUsersResult is the result of ListUsers. IsTruncated is always false:
// list pagination is an explicit non-goal.
type ListUsersResult struct {
	Members     []UserView `json:"members"`
	IsTruncated bool       `json:"is_truncated"`
}

// ListAccessKeysResult is the result of ListAccessKeys.
type ListAccessKeysResult struct {
	Username    string              `json:"username"`
	Members     []AccessKeyView     `json:"members"`
	IsTruncated bool                `json:"is_truncated"`
}
