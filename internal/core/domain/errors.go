package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDecompositionFormat = errors.New("decomposition format error")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrCompletion          = errors.New("completion failure")
	ErrRetrieval           = errors.New("retrieval failure")
	ErrCancelled           = errors.New("query cancelled")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ContextError classifies a context failure. An expired deadline is a
// timeout and reported as ErrTemporary; only an explicit cancellation is
// ErrCancelled. Errors that already carry either kind are returned as is.
func ContextError(operation string, err error) error {
	if err == nil || IsKind(err, ErrCancelled) || IsKind(err, ErrTemporary) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrTemporary, operation, err)
	}
	return WrapError(ErrCancelled, operation, err)
}

// DecompositionFormatError reports an item of the decomposition output that
// does not match the [Category]Question shape.
type DecompositionFormatError struct {
	Item   string
	Reason string
}

func (e *DecompositionFormatError) Error() string {
	if e == nil {
		return ErrDecompositionFormat.Error()
	}
	return fmt.Sprintf("%s: %s: %q", ErrDecompositionFormat.Error(), e.Reason, strings.TrimSpace(e.Item))
}

func (e *DecompositionFormatError) Unwrap() error { return ErrDecompositionFormat }

// UnknownCategoryError is returned by routing when no retriever is
// registered for the category.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	if e == nil {
		return ErrUnknownCategory.Error()
	}
	return fmt.Sprintf("%s: %q", ErrUnknownCategory.Error(), e.Category)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }
