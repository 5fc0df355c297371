package retrieval

import "errors"

// Sentinel kinds for retrieval errors.
var (
	ErrEmptyCorpus  = errors.New("regulatory corpus is empty")
	ErrLoadCorpus   = errors.New("load regulatory corpus failed")
	ErrEmptyQuery   = errors.New("empty retrieval query")
	ErrInvalidEntry = errors.New("invalid corpus passage")
)
