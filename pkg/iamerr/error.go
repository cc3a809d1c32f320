// Package iamerr defines the IAM error taxonomy for the account and
// access-key identity store: AWS-compatible error kinds, their HTTP status
// codes, and the POSIX errno fallback mapping.
//
// Modeled on the s3err.APIError / s3err.ErrorCode shape used by the S3 API
// layer, scoped down to the seven kinds the identity store can produce.
package iamerr

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"syscall"
)

// Kind enumerates the IAM error kinds the identity store can return.
type Kind int

const (
	KindNone Kind = iota
	KindAccessDenied
	KindEntityAlreadyExists
	KindNoSuchEntity
	KindDeleteConflict
	KindLimitExceeded
	KindValidationError
	KindServiceFailure
)

// kindInfo describes a Kind's AWS-equivalent code, default message and HTTP
// status, the way errorCodeResponse does for s3err.ErrorCode.
type kindInfo struct {
	code           string
	description    string
	httpStatusCode int
}

var kindTable = map[Kind]kindInfo{
	KindAccessDenied: {
		code:           "AccessDeniedException",
		description:    "Access denied.",
		httpStatusCode: http.StatusForbidden,
	},
	KindEntityAlreadyExists: {
		code:           "EntityAlreadyExists",
		description:    "The request was rejected because it attempted to create a resource that already exists.",
		httpStatusCode: http.StatusConflict,
	},
	KindNoSuchEntity: {
		code:           "NoSuchEntity",
		description:    "The request was rejected because it referenced a resource entity that does not exist.",
		httpStatusCode: http.StatusNotFound,
	},
	KindDeleteConflict: {
		code:           "DeleteConflict",
		description:    "The request was rejected because it attempted to delete a resource that still has attached subordinate entities.",
		httpStatusCode: http.StatusConflict,
	},
	KindLimitExceeded: {
		code:           "LimitExceeded",
		description:    "The request was rejected because it attempted to create resources beyond the allowed quota.",
		httpStatusCode: http.StatusConflict,
	},
	KindValidationError: {
		code:           "ValidationError",
		description:    "The request failed schema validation.",
		httpStatusCode: http.StatusBadRequest,
	},
	KindServiceFailure: {
		code:           "ServiceFailure",
		description:    "The request processing has failed because of an unknown error.",
		httpStatusCode: http.StatusInternalServerError,
	},
}

// APIError is the error shape surfaced to callers: an AWS-compatible code,
// a human message, and the matching HTTP status.
type APIError struct {
	Kind           Kind
	Code           string
	Message        string
	HTTPStatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an APIError of the given kind with a caller-supplied message.
// An empty message falls back to the kind's default description.
func New(kind Kind, message string) *APIError {
	info, ok := kindTable[kind]
	if !ok {
		info = kindInfo{code: "InternalError", description: "unmapped error kind", httpStatusCode: http.StatusInternalServerError}
	}
	if message == "" {
		message = info.description
	}
	return &APIError{
		Kind:           kind,
		Code:           info.code,
		Message:        message,
		HTTPStatusCode: info.httpStatusCode,
	}
}

// Is reports whether err is an *APIError of the given kind. Supports
// errors.Is unwrapping so wrapped APIErrors still match.
func Is(err error, kind Kind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// FromErrno maps a POSIX errno (surfaced through os/syscall errors) to an
// IAM error kind. This is the fallback path: every code path in the
// identity store should classify a failure explicitly before reaching
// here; FromErrno only backstops unclassified I/O errors.
func FromErrno(err error) *APIError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return New(KindNoSuchEntity, err.Error())
	case errors.Is(err, fs.ErrExist), errors.Is(err, syscall.EEXIST):
		return New(KindEntityAlreadyExists, err.Error())
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES):
		return New(KindAccessDenied, err.Error())
	default:
		return New(KindServiceFailure, err.Error())
	}
}
