package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule indicates a policy rule or condition is malformed.
	ErrInvalidRule = errors.New("invalid permission rule")
	// ErrPersistence indicates a durable-store operation failed. The engine
	// does not retry internally; callers decide retry policy.
	ErrPersistence = errors.New("persistence failure")
)

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
