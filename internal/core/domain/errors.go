package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEntry      = errors.New("invalid entry")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidSortMode   = errors.New("invalid sort mode")
	ErrInvalidImage      = errors.New("invalid image")
	ErrImageTooLarge     = errors.New("image too large")
	ErrFeedSubscription  = errors.New("feed subscription failed")
	ErrUnauthorized      = errors.New("unauthorized")
)
