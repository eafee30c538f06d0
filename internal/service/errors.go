package service

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("student not found")
	ErrNotConfirmed = errors.New("operation not confirmed")
	ErrNoUnusedID   = errors.New("identity generator produced no unused id")
)

// ValidationError lists the required fields missing from a manual save.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// StorageError wraps a failure of the durable slot.
type StorageError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
