package memo

import (
	"errors"

	"github.com/jonwraymond/memoflight/keyer"
)

// ErrUncacheable is keyer.ErrUncacheable, re-exported so callers can match
// canonicalization failures without importing the keyer package.
var ErrUncacheable = keyer.ErrUncacheable

// Sentinel errors for cache construction and use.
var (
	// ErrNilFunc is returned when a nil function is passed to a call path.
	ErrNilFunc = errors.New("memo: fn is nil")

	// ErrInvalidMaxSize indicates a negative max size; zero means unbounded.
	ErrInvalidMaxSize = errors.New("memo: max size must be >= 0")

	// ErrInvalidTTL indicates a negative TTL; zero means no expiry.
	ErrInvalidTTL = errors.New("memo: ttl must be >= 0")

	// ErrValueType is returned by wrapped functions when a cached value does
	// not have the wrapper's result type.
	ErrValueType = errors.New("memo: cached value has unexpected type")

	// ErrPanic is the failure followers observe when the owning computation
	// panicked instead of returning. The panic itself propagates to the
	// owner's caller.
	ErrPanic = errors.New("memo: computation panicked")
)
