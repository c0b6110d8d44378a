// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/tidwall/gjson"
)

type ErrorKind string

const (
	KindUnreachable       ErrorKind = "STORE_UNREACHABLE"
	KindDatabaseNotFound  ErrorKind = "DATABASE_NOT_FOUND"
	KindMalformed         ErrorKind = "MALFORMED"
	KindUnsupportedFormat ErrorKind = "UNSUPPORTED_FORMAT"
	KindConflict          ErrorKind = "CONFLICT"
	KindArgument          ErrorKind = "ARGUMENT"
	KindDecode            ErrorKind = "DECODE"
	KindInternal          ErrorKind = "INTERNAL"
)

// Error codes stardog reports in the SD-Error-Code header and the body
const (
	CodeDatabaseMissing = "0D0DU2"
	CodeDatabaseExists  = "0D0DE2"
	CodeQueryParse      = "QE0PE2"
)

// StoreError is the only error type returned by the backend and admin client
type StoreError struct {
	Kind    ErrorKind
	Message string
	// the stardog error code, when the store reported one
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) error {
	return &StoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(err error, kind ErrorKind, format string, args ...any) error {
	return &StoreError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err; errors from outside this package are internal
func KindOf(err error) ErrorKind {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	var decodeErr *rdfterm.DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}
	if errors.Is(err, rdfterm.ErrMalformedTerm) {
		return KindMalformed
	}
	return KindInternal
}

// IsKind checks if an error has a specific kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// classify a non successful stardog response
func errorFromResponse(operation string, resp *http.Response, body []byte) error {
	code := resp.Header.Get("SD-Error-Code")
	if code == "" {
		code = gjson.GetBytes(body, "code").String()
	}
	message := gjson.GetBytes(body, "message").String()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	var kind ErrorKind
	switch {
	case code == CodeDatabaseMissing:
		kind = KindDatabaseNotFound
	case code == CodeQueryParse:
		kind = KindMalformed
	case code == CodeDatabaseExists:
		kind = KindConflict
	case resp.StatusCode == http.StatusNotFound:
		kind = KindDatabaseNotFound
	case resp.StatusCode == http.StatusBadRequest:
		kind = KindMalformed
	case resp.StatusCode == http.StatusConflict:
		kind = KindConflict
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		// the shared credentials were rejected so no request can succeed
		kind = KindUnreachable
	default:
		kind = KindInternal
	}
	return &StoreError{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf("%s failed, status: %d, response: %s", operation, resp.StatusCode, message),
	}
}
