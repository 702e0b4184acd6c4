package protocol

import (
	"errors"
	"time"
)

// Core protocol errors
var (
	// Framing errors

	ErrMalformedPacket = errors.New("malformed packet")
	ErrTruncatedPacket = errors.New("truncated packet")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrStringTooLong   = errors.New("string too long")

	// Command errors

	ErrUnknownVersion = errors.New("unknown protocol version")
	ErrUnknownCommand = errors.New("unknown command")

	// Component errors

	ErrUnknownComponent  = errors.New("unknown component")
	ErrTooManyComponents = errors.New("too many components")

	// Game errors

	ErrInvalidConfig = errors.New("invalid configuration")
	ErrCapacity      = errors.New("capacity reached")
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// Protocol misuse (1000-1999)

	ErrorCodeProtocolMisuse ErrorCode = 1007

	// Packet error codes (3000-3999)

	ErrorCodeMalformedPacket  ErrorCode = 3001
	ErrorCodeTruncatedPacket  ErrorCode = 3002
	ErrorCodePayloadTooLarge  ErrorCode = 3003
	ErrorCodeUnknownVersion   ErrorCode = 3004
	ErrorCodeUnknownCommand   ErrorCode = 3005
	ErrorCodeUnknownComponent ErrorCode = 3006

	// Capacity error codes (5000-5999)

	ErrorCodeCapacity ErrorCode = 5003

	// Transport error codes (7000-7999)

	ErrorCodeTransportFailed ErrorCode = 7003
	ErrorCodeSendFailed      ErrorCode = 7008

	// Configuration error codes (8000-8999)

	ErrorCodeInvalidConfig ErrorCode = 8001

	ErrorCodeUnknownError ErrorCode = 9999
)

// Error represents a protocol-specific error with additional context
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Context   map[string]any
	Timestamp int64
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewProtocolError creates a new protocol error
func NewProtocolError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Context:   make(map[string]any),
		Timestamp: time.Now().Unix(),
	}
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsDroppable reports errors after which only the offending packet is
// discarded; the session keeps going.
func (e *Error) IsDroppable() bool {
	switch e.Code {
	case ErrorCodeMalformedPacket,
		ErrorCodeTruncatedPacket,
		ErrorCodePayloadTooLarge,
		ErrorCodeUnknownVersion,
		ErrorCodeUnknownCommand,
		ErrorCodeUnknownComponent,
		ErrorCodeSendFailed:
		return true
	default:
		return false
	}
}

var errorCodeMap = map[error]ErrorCode{
	ErrMalformedPacket:   ErrorCodeMalformedPacket,
	ErrTruncatedPacket:   ErrorCodeTruncatedPacket,
	ErrPayloadTooLarge:   ErrorCodePayloadTooLarge,
	ErrStringTooLong:     ErrorCodePayloadTooLarge,
	ErrUnknownVersion:    ErrorCodeUnknownVersion,
	ErrUnknownCommand:    ErrorCodeUnknownCommand,
	ErrUnknownComponent:  ErrorCodeUnknownComponent,
	ErrTooManyComponents: ErrorCodePayloadTooLarge,
	ErrInvalidConfig:     ErrorCodeInvalidConfig,
	ErrCapacity:          ErrorCodeCapacity,
}

// GetErrorCode returns the error code for a given error
func GetErrorCode(err error) ErrorCode {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return ErrorCodeUnknownError
}

// WrapError wraps a standard error into a protocol Error
func WrapError(err error, message string) *Error {
	return NewProtocolError(GetErrorCode(err), message, err)
}
