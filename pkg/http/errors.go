package http

import (
	"fmt"
	"net/http"
)

// Error codes returned in AppError.Code.
const (
	CodeUnknownSymbol   = "ERR_UNKNOWN_SYMBOL"
	CodeAlertNotFound   = "ERR_ALERT_NOT_FOUND"
	CodeInvalidAlert    = "ERR_INVALID_ALERT"
	CodeInvalidSettings = "ERR_INVALID_SETTINGS"
	CodeRateLimited     = "ERR_RATE_LIMITED"
	CodeInternal        = "ERR_INTERNAL"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// UnknownSymbolError is returned when the store holds nothing for symbol.
func UnknownSymbolError(symbol string) *AppError {
	return NewAppError(CodeUnknownSymbol, "symbol", "no data for symbol", http.StatusNotFound).
		WithParam("symbol", symbol)
}

// AlertNotFoundError is returned for an unknown alert id.
func AlertNotFoundError(id string) *AppError {
	return NewAppError(CodeAlertNotFound, "id", "alert not found", http.StatusNotFound).
		WithParam("id", id)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
