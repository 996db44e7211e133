// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// Well-known error codes produced by the bridge itself. Handlers may
// return their own codes via [Error]; everything else is mapped to one
// of these.
const (
	// CodeParseError is returned for input lines that are not valid
	// JSON. The request never reaches the command router.
	CodeParseError = "PARSE_ERROR"

	// CodeInvalidRequest is returned for structurally valid JSON that
	// is not a usable request: missing method, or a failed
	// authentication check.
	CodeInvalidRequest = "INVALID_REQUEST"

	// CodeMethodNotFound is returned when no handler is registered for
	// the requested method. The error details enumerate all registered
	// method names.
	CodeMethodNotFound = "METHOD_NOT_FOUND"

	// CodeTimeout is returned when the host's cooperative loop did not
	// execute the request within the configured wait ceiling. The work
	// item is abandoned; a result produced later is discarded.
	CodeTimeout = "TIMEOUT"

	// CodeInternalError is returned for any uncategorized failure while
	// dispatching or executing a handler.
	CodeInternalError = "INTERNAL_ERROR"
)

// MaxLineBytes is the maximum size of a single request line. 1 MB is
// generous for any editor operation; a client that exceeds it is
// malformed and its connection is dropped.
const MaxLineBytes = 1024 * 1024

// Request is one decoded request line.
type Request struct {
	// Method selects the registered handler.
	Method string `json:"method"`

	// Params is an opaque payload interpreted only by the handler.
	Params json.RawMessage `json:"params,omitempty"`

	// Auth is the shared session token. Required on every request when
	// the bridge runs with authentication enabled; ignored otherwise.
	Auth string `json:"auth,omitempty"`
}

// ErrorBody is the error half of a response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Response is one response line. Exactly one of Result or Err is
// populated; use [Success] and [Failure] to construct well-formed
// values.
type Response struct {
	Result json.RawMessage
	Err    *ErrorBody
}

// Success builds a success response. The value is marshaled
// immediately so serialization failures surface as an INTERNAL_ERROR
// response instead of a broken wire line. A nil value produces
// {"result": null}.
func Success(value any) Response {
	if value == nil {
		return Response{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return Failure(CodeInternalError, fmt.Sprintf("marshaling result: %v", err), nil)
	}
	return Response{Result: data}
}

// Failure builds an error response.
func Failure(code, message string, details any) Response {
	return Response{Err: &ErrorBody{Code: code, Message: message, Details: details}}
}

// IsError reports whether the response carries an error.
func (r Response) IsError() bool {
	return r.Err != nil
}

// MarshalJSON serializes the envelope with exactly one of the two
// keys. A success response with no payload serializes as
// {"result": null} rather than an empty object, so clients can key on
// the presence of "result" versus "error".
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error *ErrorBody `json:"error"`
		}{r.Err})
	}
	result := r.Result
	if result == nil {
		result = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Result json.RawMessage `json:"result"`
	}{result})
}

// UnmarshalJSON decodes a response envelope, rejecting lines that
// carry both or neither key. Used by the call client and tests.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		Result json.RawMessage `json:"result"`
		Error  *ErrorBody      `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Error != nil && wire.Result != nil {
		return fmt.Errorf("response carries both result and error")
	}
	// Distinguish {"result": null} from a missing result key.
	if wire.Error == nil {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return err
		}
		if _, ok := keys["result"]; !ok {
			return fmt.Errorf("response carries neither result nor error")
		}
	}
	r.Result = wire.Result
	r.Err = wire.Error
	return nil
}

// ParseRequest decodes one request line. A JSON decode failure is a
// framing error (PARSE_ERROR); a missing method is reported separately
// so the caller can classify it as INVALID_REQUEST.
func ParseRequest(line []byte) (Request, error) {
	var request Request
	if err := json.Unmarshal(line, &request); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return request, nil
}

// Error is an error value carrying a protocol error code. Handlers
// return it (directly or wrapped) to classify their own failures;
// anything else becomes INTERNAL_ERROR.
type Error struct {
	Code    string
	Message string
	Details any
}

// NewError builds a classified handler error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
