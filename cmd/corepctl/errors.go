package main

import "errors"

var (
	ErrInput    = errors.New("invalid input file")
	ErrBlocking = errors.New("report has failed blocking validation rules")
	ErrSubmit   = errors.New("submission rejected")
	ErrFormat   = errors.New("unsupported output format")
)
