package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Flow errors
	ErrValidationFailed = fmt.Errorf("champion validation failed")
	ErrNoPendingFlow    = fmt.Errorf("no pending authorization flow")
	ErrAuthDenied       = fmt.Errorf("authorization denied")

	// API and transport errors
	ErrTransport  = fmt.Errorf("transport error")
	ErrTokenParse = fmt.Errorf("malformed token response")

	// Local asset errors
	ErrAssetWrite = fmt.Errorf("failed to write asset")
	ErrAssetRead  = fmt.Errorf("failed to read asset")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
