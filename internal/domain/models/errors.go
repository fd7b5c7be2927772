package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means no usable training rows remained.
	ErrInsufficientData = errors.New("insufficient data for training")
	// ErrModelNotTrained means predict was called before train or load.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrInvalidRecord marks an upstream record that cannot be used.
	ErrInvalidRecord = errors.New("invalid sale record")
	// ErrInvalidHorizon marks a forecast horizon the model cannot serve.
	ErrInvalidHorizon = errors.New("invalid forecast horizon")
	// ErrTrainingInProgress is returned when another training holds the lock.
	ErrTrainingInProgress = errors.New("training already in progress")
	// ErrCorruptBundle means a persisted bundle is incomplete or unreadable.
	ErrCorruptBundle = errors.New("corrupt model bundle")
)

// TransportError wraps any failure reading the upstream sales source.
type TransportError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sales source %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("sales source %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnknownCategoryError is returned when encoding a shop unseen at fit time.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown shop %q", e.Category)
}

// MissingFieldError is returned when an upstream record lacks a column.
type MissingFieldError struct {
	Field string
	Index int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: missing required field %q", e.Index, e.Field)
}
