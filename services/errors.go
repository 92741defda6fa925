package services

import "errors"

var (
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrNotificationWriteFailed = errors.New("notification write failed")
	ErrMessageWriteFailed      = errors.New("message write failed")
	ErrFetchFailed             = errors.New("fetch failed")
	ErrBroadcastFailed         = errors.New("broadcast failed")
	ErrSubscription            = errors.New("subscription error")

	ErrEmptyContent       = errors.New("message content is empty")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidKey         = errors.New("conversation key is incomplete")
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateMember    = errors.New("a team member with this email already exists")
	ErrInvalidMember      = errors.New("invalid team member")
	ErrRequestNotPending  = errors.New("connection request is not pending")
	ErrForbidden          = errors.New("not allowed for this role")
	ErrManagerClosed      = errors.New("subscription manager closed")
	ErrManagerAlreadyOpen = errors.New("subscription manager already started")
)
