package subscription

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// Error codes carried in ParseError.AppError.Code.
const (
	CodeInvalidEncoding   = "SUB_INVALID_ENCODING"
	CodeMissingField      = "SUB_MISSING_FIELD"
	CodeInvalidAddress    = "SUB_INVALID_ADDRESS"
	CodeUnsupportedScheme = "SUB_UNSUPPORTED_SCHEME"
	CodeInvalidDocument   = "SUB_INVALID_DOCUMENT"
	CodeInvalidQuery      = "SUB_INVALID_QUERY"
	CodeInvalidEntry      = "SUB_INVALID_ENTRY"
)

var (
	// ErrInvalidEncoding matches any ParseError caused by malformed user-info or base64.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrInvalidDocument matches payloads that cannot be decoded as a whole.
	ErrInvalidDocument = errors.New("invalid subscription document")
)

// ParseError describes a rejected node entry or an undecodable payload.
type ParseError struct {
	AppError domain.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.AppError.Code
	if e.AppError.Line > 0 {
		prefix = fmt.Sprintf("%s (line %d)", prefix, e.AppError.Line)
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", prefix, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrInvalidEncoding:
		return e.AppError.Code == CodeInvalidEncoding
	case ErrInvalidDocument:
		return e.AppError.Code == CodeInvalidDocument
	}
	return false
}

func newParseError(code, message string, cause error) *ParseError {
	return &ParseError{
		AppError: domain.AppError{
			Code:    code,
			Message: message,
			Stage:   domain.StageParse,
		},
		Cause: cause,
	}
}

// at annotates the error with its position in the payload.
func (e *ParseError) at(source string, line int, snippet string) *ParseError {
	e.AppError.Source = source
	e.AppError.Line = line
	e.AppError.Snippet = truncateSnippet(snippet, 200)
	return e
}

func (e *ParseError) withNode(name string) *ParseError {
	e.AppError.Node = name
	return e
}
