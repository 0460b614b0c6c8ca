package audit

import "errors"

// ErrInvalidSettings rejects a run before any work starts.
var ErrInvalidSettings = errors.New("invalid crawl settings")

// ErrNotFound is returned by stores when a run or page does not exist.
var ErrNotFound = errors.New("not found")
