package mcp

import (
	"errors"
	"fmt"

	"github.com/katanaquant/ragengine/internal/ragerr"
)

// Custom MCP error codes for the retrieval engine, reserved in the
// same -320xx band the protocol leaves free for application use.
const (
	ErrCodeExtractionFailed = -32001
	ErrCodeEmbeddingFailed  = -32002
	ErrCodeStoreConflict    = -32003
	ErrCodeValidationReject = -32004
	ErrCodeDocumentNotFound = -32005

	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ErrDocumentNotFound is returned by tool handlers when the requested
// document path has no indexed row.
var ErrDocumentNotFound = errors.New("document not found")

// MCPError is a protocol-level error with a stable numeric code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string { return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message) }

// MapError translates the engine's structured errors into an MCPError
// a client can branch on, falling back to a generic internal error for
// anything it doesn't recognize.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ragErr *ragerr.Error
	if errors.As(err, &ragErr) {
		switch ragErr.Kind {
		case ragerr.KindExtractionFailed:
			return &MCPError{Code: ErrCodeExtractionFailed, Message: ragErr.Message}
		case ragerr.KindEmbeddingFailed:
			return &MCPError{Code: ErrCodeEmbeddingFailed, Message: ragErr.Message}
		case ragerr.KindStoreConflict:
			return &MCPError{Code: ErrCodeStoreConflict, Message: ragErr.Message}
		case ragerr.KindValidationRejected:
			return &MCPError{Code: ErrCodeValidationReject, Message: ragErr.Message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: ragErr.Error()}
		}
	}

	if errors.Is(err, ErrDocumentNotFound) {
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: err.Error()}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
