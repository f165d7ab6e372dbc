package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrGateway marks a failed language-model call
	ErrGateway = errors.New("language model gateway failed")

	// ErrNotFound indicates that a requested file or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured indicates an optional backend (S3, DynamoDB, Lambda) is not set up
	ErrNotConfigured = errors.New("not configured")
)

// UploadError is returned when an upload request is missing its file
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// NewUploadError creates a new UploadError
func NewUploadError(message string) *UploadError {
	return &UploadError{Message: message}
}

// PipelineError wraps any failure that aborts a cleaning run
type PipelineError struct {
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pipeline %s failed", e.Op)
	}
	return fmt.Sprintf("pipeline %s failed: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError
func NewPipelineError(op string, err error) *PipelineError {
	return &PipelineError{Op: op, Err: err}
}

// NotFoundError represents a missing file or record
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
