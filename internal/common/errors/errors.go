// internal/common/errors/errors.go
// Package errors provides standardized error handling for the deliberation
// pipeline and its collaborators.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRoutingParseFailed ErrorCode = "ROUTING_PARSE_FAILED"
	ErrCodeRoutingCallFailed  ErrorCode = "ROUTING_CALL_FAILED"

	ErrCodeExpertTimeout    ErrorCode = "EXPERT_TIMEOUT"
	ErrCodeExpertCallFailed ErrorCode = "EXPERT_CALL_FAILED"
	ErrCodeCouncilEmpty     ErrorCode = "COUNCIL_EMPTY"

	ErrCodeSynthesisFailed  ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeSynthesisTimeout ErrorCode = "SYNTHESIS_TIMEOUT"

	ErrCodeEmbeddingFailed   ErrorCode = "EMBEDDING_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeConversationCreateFailed ErrorCode = "CONVERSATION_CREATE_FAILED"
	ErrCodeTurnInsertFailed         ErrorCode = "TURN_INSERT_FAILED"
	ErrCodeTurnDeleteFailed         ErrorCode = "TURN_DELETE_FAILED"
	ErrCodeHistoryFetchFailed       ErrorCode = "HISTORY_FETCH_FAILED"
	ErrCodeConversationMissing      ErrorCode = "CONVERSATION_MISSING"

	ErrCodeJudgmentNotFound ErrorCode = "JUDGMENT_NOT_FOUND"
	ErrCodeInvalidFilename  ErrorCode = "INVALID_FILENAME"
	ErrCodeArchiveFetch     ErrorCode = "ARCHIVE_FETCH_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRoutingParseFailedError marks an unusable clerk response. The router
// recovers from this locally by failing open, so it is never retried.
func NewRoutingParseFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoutingParseFailed,
		Message:   "Clerk response could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoutingCallFailedError creates a retryable routing backend error.
func NewRoutingCallFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoutingCallFailed,
		Message:   "Clerk model call failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpertTimeoutError creates a per-member timeout error. The council
// treats it as an absence, never as a request failure.
func NewExpertTimeoutError(role string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExpertTimeout,
		Message:   "Council member timed out",
		Details:   fmt.Sprintf("role: %s", role),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpertCallFailedError creates a per-member backend error.
func NewExpertCallFailedError(role string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExpertCallFailed,
		Message:   "Council member call failed",
		Details:   fmt.Sprintf("role: %s, error: %s", role, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCouncilEmptyError marks a session where every member absented.
func NewCouncilEmptyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCouncilEmpty,
		Message:   "No council members completed deliberation",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError creates a retryable chairman error.
func NewSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Chairman synthesis failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisTimeoutError creates a retryable chairman timeout error.
func NewSynthesisTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisTimeout,
		Message:   "Chairman synthesis timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable query embedding error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Query embedding failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search error. The retrieval
// dispatcher degrades it to an empty result set.
func NewSearchQueryFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Vector search query failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(collection string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Vector search timed out",
		Details:   fmt.Sprintf("collection: %s", collection),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationCreateFailedError creates a retryable store error.
func NewConversationCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationCreateFailed,
		Message:   "Conversation insert failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTurnInsertFailedError creates a retryable store error.
func NewTurnInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTurnInsertFailed,
		Message:   "Turn insert failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTurnDeleteFailedError creates a retryable store error.
func NewTurnDeleteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTurnDeleteFailed,
		Message:   "Turn delete failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryFetchFailedError creates a retryable store error.
func NewHistoryFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryFetchFailed,
		Message:   "History fetch failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationMissingError marks a referential-integrity failure: the
// turn insert referenced a conversation the store does not know.
func NewConversationMissingError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationMissing,
		Message:   "Conversation does not exist",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewJudgmentNotFoundError creates a non-retryable archive lookup error.
func NewJudgmentNotFoundError(filename string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJudgmentNotFound,
		Message:   "Judgment not found in archive index",
		Details:   fmt.Sprintf("filename: %s", filename),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFilenameError creates a non-retryable request error.
func NewInvalidFilenameError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilename,
		Message:   "Invalid judgment filename",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveFetchError creates a retryable upstream archive error.
func NewArchiveFetchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveFetch,
		Message:   "Judgment archive fetch failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRoutingCallFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeConversationCreateFailed,
		ErrCodeTurnInsertFailed,
		ErrCodeTurnDeleteFailed,
		ErrCodeArchiveFetch:
		return 3

	case ErrCodeSearchTimeout,
		ErrCodeSynthesisFailed:
		return 2

	case ErrCodeSynthesisTimeout,
		ErrCodeCouncilEmpty,
		ErrCodeConversationMissing:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ROUTING"):
		return "ROUTING"
	case strings.Contains(codeStr, "EXPERT") || strings.Contains(codeStr, "COUNCIL") || strings.Contains(codeStr, "SYNTHESIS"):
		return "COUNCIL"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "EMBEDDING"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "CONVERSATION") || strings.Contains(codeStr, "TURN") || strings.Contains(codeStr, "HISTORY"):
		return "STORE"
	case strings.Contains(codeStr, "JUDGMENT") || strings.Contains(codeStr, "ARCHIVE") || strings.Contains(codeStr, "FILENAME"):
		return "ARCHIVE"
	default:
		return "OTHER"
	}
}
