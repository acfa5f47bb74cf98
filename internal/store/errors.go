package store

import "errors"

// Sentinel errors for store-layer failures (spec §7: "store-layer errors
// bubble up unwrapped").
var (
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionExists      = errors.New("session_already_exists")
	ErrJobNotFound        = errors.New("job_not_found")
	ErrNestedTransaction  = errors.New("nested_transaction")
	ErrApiKeyNotFound     = errors.New("api_key_not_found")
)
