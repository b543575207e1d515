package services

import "errors"

// ErrNotFound is returned when a document, rule or violation does not exist
// inside the caller's organization. Handlers translate it to a 404.
var ErrNotFound = errors.New("resource not found")
