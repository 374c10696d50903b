package pipeline

import "errors"

// ErrEmptyResult is returned when no row of an upload survived cleaning.
// Nothing is persisted in that case.
var ErrEmptyResult = errors.New("pipeline: no valid rows in upload")

// ErrBackend wraps every failure of the record store or the archive.
// Failed calls are not retried.
var ErrBackend = errors.New("pipeline: storage backend failure")
