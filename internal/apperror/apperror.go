// Package apperror defines the closed set of error kinds the gateway can
// surface to clients, and the stable JSON envelope they serialize to.
package apperror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is a closed enum; every handler-facing error must map to exactly one.
type Kind string

const (
	BadRequest      Kind = "bad_request"
	Unauthorized    Kind = "unauthorized"
	PaymentRequired Kind = "payment_required"
	Forbidden       Kind = "forbidden"
	NotFound        Kind = "not_found"
	RateLimited     Kind = "rate_limited"
	Internal        Kind = "internal"
)

// kindInfo is the fixed HTTP-status / wire-type / wire-code mapping for a Kind.
type kindInfo struct {
	status int
	typ    string
	code   string
}

var kindTable = map[Kind]kindInfo{
	BadRequest:      {http.StatusBadRequest, "invalid_request_error", "bad_request"},
	Unauthorized:    {http.StatusUnauthorized, "authentication_error", "unauthorized"},
	PaymentRequired: {http.StatusPaymentRequired, "insufficient_credits", "insufficient_credits"},
	Forbidden:       {http.StatusForbidden, "permission_denied", "forbidden"},
	NotFound:        {http.StatusNotFound, "not_found", "not_found"},
	RateLimited:     {http.StatusTooManyRequests, "rate_limit_exceeded", "rate_limit_exceeded"},
	Internal:        {http.StatusInternalServerError, "internal_error", "internal_error"},
}

// Error is the gateway's single error type. Message is always safe to return
// to the client; wrapped carries the original cause for logging only.
type Error struct {
	Kind    Kind
	Message string
	Param   string
	wrapped error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As, logging only — never serialized.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// HTTPStatus returns the fixed status code for this error's kind.
func (e *Error) HTTPStatus() int {
	return kindTable[e.Kind].status
}

// New builds a new Error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithParam is New with a param attached (surfaced in the envelope's "param" field).
func WithParam(kind Kind, message, param string) *Error {
	return &Error{Kind: kind, Message: message, Param: param}
}

// Wrap produces an Internal error that redacts the cause's message from the
// client while keeping it available via Unwrap for logging.
func Wrap(cause error) *Error {
	var e *Error
	if errors.As(cause, &e) {
		return e
	}
	return &Error{Kind: Internal, Message: "an internal error occurred", wrapped: cause}
}

// WrapKind wraps cause as the given kind, using message as the client-safe text.
func WrapKind(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, wrapped: cause}
}

// envelope is the wire shape: {"error": {"message", "type", "param"?, "code"?}}.
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON serializes e onto w using its fixed HTTP status.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	info := kindTable[e.Kind]
	body := envelope{Error: envelopeBody{
		Message: e.Message,
		Type:    info.typ,
		Param:   e.Param,
		Code:    info.code,
	}}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(info.status)
	_ = json.NewEncoder(w).Encode(body)
}

// As attempts to coerce err into *Error, wrapping it as Internal otherwise.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err)
}
