package database

import "errors"

// Store-level errors. Handlers map these onto the HTTP status contract.
var (
	ErrUsernameTaken = errors.New("username taken")
	ErrUserNotFound  = errors.New("user not found")
	ErrSelfTarget    = errors.New("cannot start a conversation with yourself")
)
