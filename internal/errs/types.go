package errs

import "fmt"

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

type NotFoundError struct {
	ErrorMessage
}

type AlreadyExistsError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

// ConfigurationError reports a recoverable misconfiguration: an unknown
// widget type, a query without a source, an unknown transform.
type ConfigurationError struct {
	ErrorMessage
	Field string
}

// TransientIOError wraps a network or backend failure while acquiring data.
type TransientIOError struct {
	ErrorMessage
	Source string
	Status int
	Err    error
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// SocketError is raised when a websocket source fails before delivering its
// first message.
type SocketError struct {
	ErrorMessage
	Endpoint string
	Err      error
}

func (e *SocketError) Unwrap() error { return e.Err }

type DatabaseError struct {
	ErrorMessage
	Operation string
	Err       error
}

func (e *DatabaseError) Unwrap() error { return e.Err }

type ExternalServiceError struct {
	ErrorMessage
	Service   string
	Transient bool
	Err       error
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewAlreadyExistsError(message string) *AlreadyExistsError {
	return &AlreadyExistsError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		ErrorMessage: ErrorMessage{Message: message},
		Field:        field,
	}
}

func NewTransientIOError(source string, status int, err error) *TransientIOError {
	msg := fmt.Sprintf("%s source failed", source)
	if status != 0 {
		msg = fmt.Sprintf("%s source returned status %d", source, status)
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	return &TransientIOError{
		ErrorMessage: ErrorMessage{Message: msg},
		Source:       source,
		Status:       status,
		Err:          err,
	}
}

func NewSocketError(endpoint string, err error) *SocketError {
	msg := "websocket " + endpoint + " failed"
	if err != nil {
		msg += ": " + err.Error()
	}
	return &SocketError{
		ErrorMessage: ErrorMessage{Message: msg},
		Endpoint:     endpoint,
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

func NewExternalServiceError(service, message string, transient bool, err error) *ExternalServiceError {
	return &ExternalServiceError{
		ErrorMessage: ErrorMessage{Message: message},
		Service:      service,
		Transient:    transient,
		Err:          err,
	}
}
