package workspace

import (
	"errors"
	"fmt"
)

// ErrPathViolation is returned when a path resolves outside the project root.
var ErrPathViolation = errors.New("path violation")

// PathViolationError records the offending path and the root it escaped.
type PathViolationError struct {
	Path string
	Root string
}

func (e *PathViolationError) Error() string {
	return fmt.Sprintf("attempt to access %q outside project root %s", e.Path, e.Root)
}

func (e *PathViolationError) Unwrap() error {
	return ErrPathViolation
}

// IsPathViolation reports whether err is or wraps a path violation.
func IsPathViolation(err error) bool {
	return errors.Is(err, ErrPathViolation)
}
