package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput         = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON        = errors.New("invalid JSON format")
	ErrMultipleJSON       = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrNoData             = errors.New("no data to convert")
	ErrNoColumns          = errors.New("no columns found in data")
	ErrInvalidOptions     = errors.New("invalid conversion options")
	ErrTrialLimitExceeded = errors.New("trial limit exceeded")
	ErrFileNotFound       = errors.New("file not found")
	ErrFileEmpty          = errors.New("file is empty")
	ErrNoInput            = errors.New("no input provided: please specify a file with -i or pipe JSON data to stdin")
	ErrInvalidFilePath    = errors.New("invalid file path")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput      ErrorType = "input"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeQuota      ErrorType = "quota"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeOutput     ErrorType = "output"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInput, Message: message, Err: err}
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeParsing, Message: message, Err: err}
}

// NewExtractionError creates a new error raised while selecting records or columns
func NewExtractionError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeExtraction, Message: message, Err: err}
}

// NewConfigError creates a new error for invalid options or configuration
func NewConfigError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeConfig, Message: message, Err: err}
}

// NewQuotaError creates a new error for a rejected record count
func NewQuotaError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeQuota, Message: message, Err: err}
}

// NewStorageError creates a new error related to the account store or cache
func NewStorageError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeStorage, Message: message, Err: err}
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeOutput, Message: message, Err: err}
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeExtraction:
			return fmt.Sprintf("Conversion error: %s", appErr.Message)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", appErr.Message)
		case ErrorTypeQuota:
			return fmt.Sprintf("Limit error: %s", appErr.Message)
		case ErrorTypeStorage:
			return fmt.Sprintf("Storage error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Please provide a single JSON object or array."
	}
	if errors.Is(err, ErrNoData) {
		return "Error: The input contains no records to convert."
	}
	if errors.Is(err, ErrNoColumns) {
		return "Error: No columns found. The records must be JSON objects."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file with -i or pipe JSON data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}

	return fmt.Sprintf("Error: %v", err)
}
