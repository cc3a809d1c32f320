package identitystore

import (
	"crypto/rand"
	"encoding/hex"
)

// accessKeyIDLength and secretKeyLength match the lengths spec.md §3
// requires for AccessKey.access_key (20 chars) and the generated secret
// (40 chars) -- the same constants LeeDigitalWorks-zapfs/pkg/iam/helpers.go
// and prn-tf-alexander-storage/internal/pkg/crypto/keygen.go both use for
// an AWS-style credential pair.
const (
	accessKeyIDLength = 20
	secretKeyLength   = 40
	accountIDLength   = 24
)

// generateAccessKeyPair returns a new (access_key, secret_key) pair.
// access_key is "AKIA" followed by 16 hex characters; secret_key is a
// 40-character hex string, mirroring helpers.go's GenerateAccessKey /
// GenerateSecretKey.
func generateAccessKeyPair() (accessKey, secretKey string, err error) {
	akBytes := make([]byte, 8)
	if _, err := rand.Read(akBytes); err != nil {
		return "", "", err
	}
	accessKey = "AKIA" + hex.EncodeToString(akBytes)

	skBytes := make([]byte, secretKeyLength/2)
	if _, err := rand.Read(skBytes); err != nil {
		return "", "", err
	}
	secretKey = hex.EncodeToString(skBytes)

	return accessKey, secretKey, nil
}

// generateAccountID returns a random 24-character hex identifier for a new
// Account, matching the id format spec.md §3 requires.
func generateAccountID() (string, error) {
	b := make([]byte, accountIDLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
