package transliterate

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindRateLimited
	KindMisconfigured
	KindUpstreamUnavailable
	KindUpstreamError
	KindInvalidUpstreamResponse
)

// Client-visible messages.
const (
	MsgRateLimited         = "Rate limit exceeded"
	MsgInvalidJSON         = "Invalid JSON"
	MsgMissingText         = "Missing 'text' string"
	MsgTextTooLong         = "Text too long (max 200 chars)"
	MsgNotConfigured       = "Server not configured"
	MsgUpstreamUnavailable = "Upstream unavailable"
	MsgUpstreamFailed      = "Transliteration failed"
	MsgInvalidUpstream     = "Invalid upstream response"
	MsgInternal            = "Internal server error"
)

// Status maps a Kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable, KindUpstreamError, KindInvalidUpstreamResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to clients;
// Details is only shown outside production; Err is for logs.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrRateLimited is returned to clients over their window budget.
var ErrRateLimited = &Error{Kind: KindRateLimited, Message: MsgRateLimited}

func badRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// AsError classifies any error. Unclassified errors become KindInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}
