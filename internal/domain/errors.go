package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidState     = errors.New("submission already in flight")
	ErrBackendRejected  = errors.New("backend rejected submission")
	ErrGenerationFailed = errors.New("generation failed")
	ErrTimeout          = errors.New("generation timed out")
	ErrCancelled        = errors.New("cancelled")
	ErrChannel          = errors.New("subscription channel failed")
	ErrRateLimited      = errors.New("rate limited")
)
