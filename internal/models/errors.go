package models

import "errors"

// Errors reported back to the client that triggered them.
var (
	ErrNameTaken              = errors.New("name already taken")
	ErrEmptyName              = errors.New("name is required")
	ErrNotRegistered          = errors.New("answer must come from a registered participant")
	ErrPollAlreadyActive      = errors.New("an active poll already exists")
	ErrInvalidPoll            = errors.New("invalid poll")
	ErrNoActivePoll           = errors.New("no active poll")
	ErrInvalidOption          = errors.New("invalid option")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrEmptyMessage           = errors.New("message content is required")
	ErrMessageTooLong         = errors.New("message too long")
	ErrPollNotFound           = errors.New("poll not found")
	ErrUnknownEvent           = errors.New("unknown event")
)
