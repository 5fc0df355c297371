package config

import "errors"

// Errors returned by Load and Validate.
var (
	ErrInvalidConfig = errors.New("config: invalid setting")
	ErrLoadConfig    = errors.New("config: cannot read settings")
)
