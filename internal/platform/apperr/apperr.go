package apperr

import (
	"errors"
	"fmt"
)

// Typed failure classes for the document-to-violation pipeline. Call sites
// wrap provider errors into one of these so orchestrators can branch on the
// class instead of string matching.

type ParsingError struct {
	Msg string
	Err error
}

func (e *ParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing: %s: %v", e.Msg, e.Err)
	}
	return "parsing: " + e.Msg
}
func (e *ParsingError) Unwrap() error { return e.Err }

type EmbeddingError struct {
	Msg string
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding: %s: %v", e.Msg, e.Err)
	}
	return "embedding: " + e.Msg
}
func (e *EmbeddingError) Unwrap() error { return e.Err }

type CompletionError struct {
	Msg string
	Err error
}

func (e *CompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion: %s: %v", e.Msg, e.Err)
	}
	return "completion: " + e.Msg
}
func (e *CompletionError) Unwrap() error { return e.Err }

// MalformedResponseError marks model output that did not parse into the
// expected structure. Retried like a transient failure, but degrades to an
// empty result where "nothing found" is a valid answer.
type MalformedResponseError struct {
	Msg string
	Err error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Msg, e.Err)
	}
	return "malformed response: " + e.Msg
}
func (e *MalformedResponseError) Unwrap() error { return e.Err }

type VectorIndexError struct {
	Msg string
	Err error
}

func (e *VectorIndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vector index: %s: %v", e.Msg, e.Err)
	}
	return "vector index: " + e.Msg
}
func (e *VectorIndexError) Unwrap() error { return e.Err }

type StorageError struct {
	Msg string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Msg, e.Err)
	}
	return "storage: " + e.Msg
}
func (e *StorageError) Unwrap() error { return e.Err }

func IsParsing(err error) bool {
	var t *ParsingError
	return errors.As(err, &t)
}

func IsEmbedding(err error) bool {
	var t *EmbeddingError
	return errors.As(err, &t)
}

func IsCompletion(err error) bool {
	var t *CompletionError
	return errors.As(err, &t)
}

func IsMalformedResponse(err error) bool {
	var t *MalformedResponseError
	return errors.As(err, &t)
}

func IsVectorIndex(err error) bool {
	var t *VectorIndexError
	return errors.As(err, &t)
}

func IsStorage(err error) bool {
	var t *StorageError
	return errors.As(err, &t)
}
