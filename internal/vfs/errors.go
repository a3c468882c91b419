package vfs

import "errors"

// Errors returned by the translation layer. Host adapters map them onto
// their own status codes with errors.Is.
var (
	ErrNotFound        = errors.New("no such file or directory")
	ErrAccessDenied    = errors.New("access denied")
	ErrNotImplemented  = errors.New("not implemented")
	ErrNotADirectory   = errors.New("not a directory")
	ErrIsADirectory    = errors.New("is a directory")
	ErrInvalidArgument = errors.New("invalid argument")
)
