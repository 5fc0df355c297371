package audit

import "errors"

// ErrUnsupportedFormat is returned by Export for formats it cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported export format")
