package service

import "github.com/pkg/errors"

// Error taxonomy surfaced to calling modules. Every failure returned by
// the services wraps exactly one of these sentinels; callers classify
// with errors.Is and decide their own user-visible behavior.
var (
	// ErrNotFound: definition, instance or transition does not exist
	// or lies outside the caller's tenant. Cross-tenant reads report
	// this rather than a forbidden error, so existence never leaks.
	ErrNotFound = errors.New("not found")

	// ErrValidation: malformed input, e.g. a missing required comment
	// or a definition with fewer than two states.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDefinition: the definition lacks an initial or final
	// state required by the attempted operation.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrInvalidState: the instance is terminal and cannot transition.
	ErrInvalidState = errors.New("instance is not active")

	// ErrIllegalTransition: the requested transition does not originate
	// at the instance's current state.
	ErrIllegalTransition = errors.New("transition is not legal from the current state")

	// ErrConcurrency: a conflicting concurrent write was detected; the
	// caller may retry, the engine never retries internally.
	ErrConcurrency = errors.New("concurrent modification detected")
)
