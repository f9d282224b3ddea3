package usecase

import "errors"

var (
	ErrAlertNotFound   = errors.New("alert not found")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrUnknownSymbol   = errors.New("unknown symbol")

	errStreamClosed = errors.New("stream closed")
)
