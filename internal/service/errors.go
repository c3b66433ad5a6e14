package service

import (
	"context"
	"errors"

	"bossfit/internal/apperr"
	"bossfit/internal/repository"
)

var (
	ErrUsernameTaken      = apperr.New(apperr.Conflict, "username already taken")
	ErrInvalidCredentials = apperr.New(apperr.Authentication, "invalid username or password")
	ErrUnauthenticated    = apperr.New(apperr.Authentication, "authentication required")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "user not found")
	ErrSelfFriend         = apperr.New(apperr.Validation, "cannot send a friend request to yourself")
	ErrAlreadyRequested   = apperr.New(apperr.Conflict, "friend request already exists")
	ErrFriendNotFound     = apperr.New(apperr.NotFound, "friend request not found")
	ErrGameNotFound       = apperr.New(apperr.NotFound, "game session not found")
	ErrInsufficientFunds  = apperr.New(apperr.Conflict, "insufficient points")
)

// storeErr classifies repository failures that callers do not handle
// themselves.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotUnique):
		return apperr.Wrap(apperr.Integrity, "data integrity violation", err)
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Unavailable, "store temporarily unavailable", err)
	default:
		return apperr.Wrap(apperr.Internal, "internal error", err)
	}
}
