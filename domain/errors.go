package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeAborted      ErrorCode = "ABORTED"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrUserNotFound         = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrSessionNotFound      = NewError(ErrCodeNotFound, "session not found")
	ErrRequestNotFound      = NewError(ErrCodeNotFound, "friend request not found")
	ErrCommentNotFound      = NewError(ErrCodeNotFound, "comment not found")
	ErrNotificationNotFound = NewError(ErrCodeNotFound, "notification not found")
	ErrUnauthorized         = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")
	ErrEmptySelection       = NewError(ErrCodeInvalid, "no friends selected")
	ErrNotInFriendList      = NewError(ErrCodeInvalid, "user is not in your friend list")
	ErrInvalidEmail         = NewError(ErrCodeInvalid, "invalid email address")
	ErrSelfRequest          = NewError(ErrCodeInvalid, "cannot send a friend request to yourself")
	ErrAlreadyFriends       = NewError(ErrCodeInvalid, "already friends")
	ErrDuplicateRequest     = NewError(ErrCodeInvalid, "friend request already sent")
	ErrEmptyComment         = NewError(ErrCodeInvalid, "comment text is empty")
	ErrSubtaskIndex         = NewError(ErrCodeInvalid, "subtask index out of range")
	ErrSubtasksIncomplete   = NewError(ErrCodeInvalid, "all subtasks must be completed first")
	ErrTaskNotCompleted     = NewError(ErrCodeInvalid, "task must be completed before finalizing")
	ErrInvalidPoints        = NewError(ErrCodeInvalid, "points must be non-negative")
	ErrNotOwner             = NewError(ErrCodeForbidden, "only the task owner can do this")
	ErrNotCollaborator      = NewError(ErrCodeForbidden, "user cannot edit this task")
	ErrNotCommentAuthor     = NewError(ErrCodeForbidden, "only the comment author can edit it")
	ErrCommentDeleteDenied  = NewError(ErrCodeForbidden, "only the author or the task owner can delete a comment")
	ErrNotRequestRecipient  = NewError(ErrCodeForbidden, "only the recipient can resolve this request")
	ErrAlreadyShared        = NewError(ErrCodeConflict, "task is already shared with the selected friends")
	ErrAlreadyFinalized     = NewError(ErrCodeConflict, "task is already finalized")
	ErrTaskFinalized        = NewError(ErrCodeConflict, "task is finalized and cannot be modified")
	ErrInFlight             = NewError(ErrCodeConflict, "operation already in progress")
	ErrRequestNotPending    = NewError(ErrCodeConflict, "friend request is no longer pending")
	ErrNotShared            = NewError(ErrCodeInvalid, "task is not shared with this user")
	ErrTxAborted            = NewError(ErrCodeAborted, "transaction aborted by a concurrent write")
	ErrConcurrentUpdate     = NewError(ErrCodeAborted, "task was changed by someone else, try again")
	ErrStoreUnavailable     = NewError(ErrCodeUnavailable, "document store unavailable")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// ErrorKind groups error codes by how callers should react to them.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindValidation  ErrorKind = "validation"
	KindPermission  ErrorKind = "permission"
	KindConcurrency ErrorKind = "concurrency"
	KindUnknown     ErrorKind = "unknown"
)

// KindOf classifies err. Errors without a domain code are unknown.
func KindOf(err error) ErrorKind {
	var dErr *Error
	if !errors.As(err, &dErr) {
		return KindUnknown
	}
	switch dErr.Code {
	case ErrCodeUnavailable:
		return KindNetwork
	case ErrCodeInvalid, ErrCodeNotFound, ErrCodeConflict:
		return KindValidation
	case ErrCodeForbidden, ErrCodeUnauthorized:
		return KindPermission
	case ErrCodeAborted:
		return KindConcurrency
	default:
		return KindUnknown
	}
}
