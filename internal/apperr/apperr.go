package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure surfaced to the HTTP layer.
type Kind string

const (
	KindUnsupportedFileType Kind = "unsupported_file_type"
	KindEmptyRequest        Kind = "empty_request"
	KindMailDecode          Kind = "mail_container_decode_error"
	KindModelCall           Kind = "model_call_error"
	KindContentBlocked      Kind = "content_blocked"
	KindTabularEncode       Kind = "tabular_encode_error"
	KindBadRequest          Kind = "bad_request"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUnknown             Kind = "unknown_error"
)

// Error carries a Kind plus optional upstream details.
type Error struct {
	Kind    Kind
	Message string
	// StatusCode and Body are set for model call failures that got an HTTP answer.
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = msg + ": " + e.Body
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func UnsupportedFileType(name, mimeType string) *Error {
	return New(KindUnsupportedFileType, fmt.Sprintf("unsupported file type: %q (%s)", name, mimeType))
}

// ErrEmptyRequest is returned when neither a prompt nor a usable file part was supplied.
var ErrEmptyRequest = New(KindEmptyRequest, "form must contain either a 'prompt' field or a 'file' field (or both)")

func ModelCall(statusCode int, body string, err error) *Error {
	return &Error{Kind: KindModelCall, Message: "gemini api error", StatusCode: statusCode, Body: body, Err: err}
}

func ContentBlocked(reason string) *Error {
	return New(KindContentBlocked, "gemini api blocked content. Reason: "+reason)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
