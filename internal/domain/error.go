package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeOracleError         ErrorCode = "ORACLE_ERROR"
	CodePlanParseError      ErrorCode = "PLAN_PARSE_ERROR"
	CodeToolNotFound        ErrorCode = "TOOL_NOT_FOUND"
	CodeToolNotInvocable    ErrorCode = "TOOL_NOT_INVOCABLE"
	CodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"
	CodeNoAvailableAgent    ErrorCode = "NO_AVAILABLE_AGENT"
	CodeInvalidArguments    ErrorCode = "INVALID_ARGUMENTS"

	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrMalformedReply    = errors.New("malformed oracle reply")
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolNotInvocable  = errors.New("tool not invocable")
	ErrToolPanicked      = errors.New("tool panicked")
	ErrInvalidArguments  = errors.New("invalid tool arguments")
	ErrJournalClosed     = errors.New("journal is closed")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	// RawReply holds the oracle content that failed to decode.
	RawReply string
	Meta     map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// WithRawReply attaches the undecodable oracle content to a copy of e.
func (e *Error) WithRawReply(raw string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.RawReply = raw
	return &clone
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:     existing.Code,
			Op:       op,
			Message:  existing.Message,
			Cause:    existing.Cause,
			RawReply: existing.RawReply,
			Meta:     existing.Meta,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrOracleUnavailable):
		return CodeOracleError, true
	case errors.Is(err, ErrMalformedReply):
		return CodePlanParseError, true
	case errors.Is(err, ErrToolNotFound):
		return CodeToolNotFound, true
	case errors.Is(err, ErrToolNotInvocable):
		return CodeToolNotInvocable, true
	case errors.Is(err, ErrToolPanicked):
		return CodeToolExecutionFailed, true
	case errors.Is(err, ErrInvalidArguments):
		return CodeInvalidArguments, true
	case errors.Is(err, context.Canceled):
		return CodeCanceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	default:
		return "", false
	}
}

// RawReplyFrom returns the raw oracle reply carried by err, if any.
func RawReplyFrom(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.RawReply
	}
	return ""
}
