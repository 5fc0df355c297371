package extraction

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrNotConfigured     = errors.New("extraction model not configured")
	ErrGenerate          = errors.New("extraction model call failed")
	ErrMalformedResponse = errors.New("malformed extraction response")
)
