package iamerr

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsMessage(t *testing.T) {
	t.Parallel()

	err := New(KindNoSuchEntity, "")
	require.NotNil(t, err)
	assert.Equal(t, "NoSuchEntity", err.Code)
	assert.NotEmpty(t, err.Message)
	assert.Equal(t, 404, err.HTTPStatusCode)
}

func TestNew_CustomMessage(t *testing.T) {
	t.Parallel()

	err := New(KindAccessDenied, "user Bob is not authorized to perform: iam:GetUser")
	assert.Equal(t, "AccessDeniedException", err.Code)
	assert.Equal(t, "user Bob is not authorized to perform: iam:GetUser", err.Message)
	assert.Equal(t, 403, err.HTTPStatusCode)
}

func TestIs(t *testing.T) {
	t.Parallel()

	err := New(KindDeleteConflict, "")
	wrapped := fmt.Errorf("delete user: %w", err)

	assert.True(t, Is(wrapped, KindDeleteConflict))
	assert.False(t, Is(wrapped, KindLimitExceeded))
	assert.False(t, Is(nil, KindDeleteConflict))
}

func TestFromErrno(t *testing.T) {
	t.Parallel()

	_, statErr := os.Stat("/nonexistent/path/that/should/not/exist")
	require.Error(t, statErr)

	mapped := FromErrno(statErr)
	require.NotNil(t, mapped)
	assert.Equal(t, KindNoSuchEntity, mapped.Kind)
}

func TestFromErrno_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromErrno(nil))
}
