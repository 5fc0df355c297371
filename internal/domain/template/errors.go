package template

import "errors"

// Sentinel kinds for template errors.
var (
	ErrUnsupportedTemplateType = errors.New("unsupported template type")
)
