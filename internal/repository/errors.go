package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
	// ErrTokenReplay is returned when a rotated refresh token is presented again.
	ErrTokenReplay = errors.New("refresh token replay detected")
)
