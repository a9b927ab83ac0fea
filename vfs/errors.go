package vfs

import (
	"errors"
	"fmt"
)

// Category classifies a store failure. Categories are errors themselves, so
// errors.Is(err, vfs.NotFound) works on anything a store returns.
type Category string

const (
	NotFound            Category = "not found"
	NotAllowed          Category = "not allowed"
	Security            Category = "security violation"
	DataClone           Category = "data clone failure"
	InvalidModification Category = "invalid modification"
	TypeMismatch        Category = "type mismatch"
	Aborted             Category = "aborted"
	InvalidState        Category = "invalid state"
	InvalidArgument     Category = "invalid argument"
	TooLarge            Category = "file too large"
)

func (c Category) Error() string { return string(c) }

// Error is a store failure with context.
type Error struct {
	Err      error
	Op       string
	Name     string
	Category Category
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Category)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Name, msg)
}

// Unwrap exposes both the category and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category}
	}
	return []error{e.Category, e.Err}
}

// NewError creates an Error without an underlying cause.
func NewError(op, name string, c Category) error {
	return &Error{Op: op, Name: name, Category: c}
}

// WrapError attaches a category to a lower level failure.
func WrapError(op, name string, c Category, err error) error {
	return &Error{Op: op, Name: name, Category: c, Err: err}
}

// CategoryOf returns the category carried by err, if any.
func CategoryOf(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	var c Category
	if errors.As(err, &c) {
		return c, true
	}
	return "", false
}
