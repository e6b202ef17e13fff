package errs

import (
	"errors"
	"fmt"
)

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

type NotFoundError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
	Field string
}

// TransportError is a failed call to the remote agent: the request never
// completed or the service answered with a non-2xx status.
type TransportError struct {
	ErrorMessage
	StatusCode int
	Transient  bool
	Err        error
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError describes one frame that could not be decoded. It is recorded
// in the decode trace and never aborts a decode.
type DecodeError struct {
	ErrorMessage
	Frame int
	Err   error
}

func (e *DecodeError) Unwrap() error { return e.Err }

type ExternalServiceError struct {
	ErrorMessage
	Service   string
	Transient bool
	Err       error
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

type DatabaseError struct {
	ErrorMessage
	Operation string
	Err       error
}

func (e *DatabaseError) Unwrap() error { return e.Err }

type EncryptionError struct {
	ErrorMessage
	Err error
}

func (e *EncryptionError) Unwrap() error { return e.Err }

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
		Field:        field,
	}
}

func NewTransportError(statusCode int, message string, err error) *TransportError {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &TransportError{
		ErrorMessage: ErrorMessage{Message: message},
		StatusCode:   statusCode,
		Transient:    statusCode == 0 || statusCode == 429 || statusCode >= 500,
		Err:          err,
	}
}

func NewDecodeError(frame int, message string, err error) *DecodeError {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &DecodeError{
		ErrorMessage: ErrorMessage{Message: message},
		Frame:        frame,
		Err:          err,
	}
}

func NewExternalServiceError(service, message string, transient bool, err error) *ExternalServiceError {
	return &ExternalServiceError{
		ErrorMessage: ErrorMessage{Message: message},
		Service:      service,
		Transient:    transient,
		Err:          err,
	}
}

func NewDatabaseError(operation, message string, err error) *DatabaseError {
	return &DatabaseError{
		ErrorMessage: ErrorMessage{Message: message},
		Operation:    operation,
		Err:          err,
	}
}

func NewEncryptionError(message string, err error) *EncryptionError {
	return &EncryptionError{
		ErrorMessage: ErrorMessage{Message: message},
		Err:          err,
	}
}

// IsCallerError reports whether err blames the request itself. A
// ValidationError or NotFoundError wrapped inside an upstream failure
// (transport or external service) does not count.
func IsCallerError(err error) bool {
	var (
		transport *TransportError
		external  *ExternalServiceError
	)
	if errors.As(err, &transport) || errors.As(err, &external) {
		return false
	}
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	return errors.As(err, &validation) || errors.As(err, &notFound)
}
