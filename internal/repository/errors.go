package repository

import "errors"

// ErrStatusConflict signals that a conditional status update matched zero
// rows: a concurrent transition changed the issue between read and write.
var ErrStatusConflict = errors.New("issue status changed concurrently")
