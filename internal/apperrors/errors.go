// Package apperrors holds the error taxonomy shared by services, the sync
// reconciler and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRemoteNotFound = errors.New("remote item not found")
	ErrNotConnected   = errors.New("provider account not connected")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrConflict       = errors.New("already exists")
	ErrUnauthorized   = errors.New("invalid credentials")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// RemoteError wraps a failed provider call.
type RemoteError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteNotFound && (e.StatusCode == 404 || e.StatusCode == 410)
}

// LinkageStaleError reports a stored external id the provider no longer knows.
type LinkageStaleError struct {
	Entity     string
	EntityID   uint
	Provider   string
	ExternalID string
}

func (e *LinkageStaleError) Error() string {
	return fmt.Sprintf("%s %d: %s item %s no longer exists, linkage cleared",
		e.Entity, e.EntityID, e.Provider, e.ExternalID)
}

func IsNotFound(err error) bool       { return errors.Is(err, ErrNotFound) }
func IsRemoteNotFound(err error) bool { return errors.Is(err, ErrRemoteNotFound) }
