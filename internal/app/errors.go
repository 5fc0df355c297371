package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrUpstream   = errors.New("upstream collaborator failed")
	ErrNoInput    = errors.New("no extraction supplied")
)
