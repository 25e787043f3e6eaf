package git

import (
	"errors"
	"fmt"
)

// ErrRepoNotInitialized is returned when the service is used before Open
var ErrRepoNotInitialized = errors.New("git repository not initialized")

// ErrRemoteNotFound is returned when the configured remote does not exist
var ErrRemoteNotFound = errors.New("remote not found")

// ErrBranchMissing is returned when the tracked branch cannot be determined
// or has no remote-tracking reference.
var ErrBranchMissing = errors.New("branch does not exist")

// WrapError wraps err with msg while keeping it comparable with errors.Is
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
