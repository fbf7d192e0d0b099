package models

import (
	"errors"
	"fmt"
)

// Snapshot store errors
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
)

// Session errors
var (
	ErrInvalidSessionToken = errors.New("invalid session token")
)

type FileError struct {
	Issue string
}

func (fe FileError) Error() string {
	return fmt.Sprintf("invalid file: %v", fe.Issue)
}
