package errors

import (
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindNotFound               Kind = "NOT_FOUND"
	KindUnknownParent          Kind = "UNKNOWN_PARENT"
	KindUnknownBranch          Kind = "UNKNOWN_BRANCH"
	KindDuplicateBranch        Kind = "DUPLICATE_BRANCH"
	KindDuplicateRepository    Kind = "DUPLICATE_REPOSITORY"
	KindConcurrentModification Kind = "CONCURRENT_MODIFICATION"
	KindInternal               Kind = "INTERNAL"
)

// Error is the one error shape the engine returns. Kind plus the
// offending identifier are enough for a caller to render a specific
// message without parsing Message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func InvalidInput(message string, details any) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func NotFound(what, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, id),
		Code:    http.StatusNotFound,
		Details: id,
	}
}

func UnknownParent(id string) *Error {
	return &Error{
		Kind:    KindUnknownParent,
		Message: fmt.Sprintf("parent commit does not exist: %s", id),
		Code:    http.StatusUnprocessableEntity,
		Details: id,
	}
}

func UnknownBranch(name string) *Error {
	return &Error{
		Kind:    KindUnknownBranch,
		Message: fmt.Sprintf("branch does not exist: %s", name),
		Code:    http.StatusNotFound,
		Details: name,
	}
}

func DuplicateBranch(name string) *Error {
	return &Error{
		Kind:    KindDuplicateBranch,
		Message: fmt.Sprintf("branch already exists: %s", name),
		Code:    http.StatusConflict,
		Details: name,
	}
}

func DuplicateRepository(name string) *Error {
	return &Error{
		Kind:    KindDuplicateRepository,
		Message: fmt.Sprintf("repository already exists: %s", name),
		Code:    http.StatusConflict,
		Details: name,
	}
}

func ConcurrentModification(branch, expectedHead string) *Error {
	return &Error{
		Kind:    KindConcurrentModification,
		Message: fmt.Sprintf("branch %s moved past %s", branch, expectedHead),
		Code:    http.StatusConflict,
		Details: expectedHead,
	}
}

func Internal(message string) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// Is reports whether err is an engine error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
