// Package apperror defines the error taxonomy exposed by the catalog API.
// Every error returned to a client is rendered as
// {"error": {"code": <code>, "context": {...}}}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" field of an error body.
const (
	CodeInternal        = "common.v1.internal-server-error"
	CodeClient          = "common.v1.client-error"
	CodeValidation      = "common.v1.validation-error"
	CodeTitleNotFound   = "catalogs.v1.title-not-found"
	CodeCatalogNotFound = "catalogs.v1.catalog-not-found"
	CodeEntityNotFound  = "catalogs.v1.entity-not-found"
)

// Error is a client-facing error with a stable code.
type Error struct {
	Code       string
	HTTPStatus int
	Context    map[string]any
	Err        error
}

func (e *Error) Error() string {
	desc, _ := e.Context["description"].(string)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, desc, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, desc)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With adds a key to the error context.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithStatus overrides the HTTP status.
func (e *Error) WithStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithCause attaches the underlying error. It is never serialized.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Body returns the JSON body for the error.
func (e *Error) Body() map[string]any {
	ctx := e.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"context": ctx,
		},
	}
}

func newError(code string, status int, description string) *Error {
	e := &Error{Code: code, HTTPStatus: status}
	if description != "" {
		e.With("description", description)
	}
	return e
}

// Validation is returned for a malformed request shape or value.
func Validation(description string) *Error {
	return newError(CodeValidation, http.StatusBadRequest, description)
}

// Client is returned for well-typed but semantically invalid input.
func Client(description string) *Error {
	return newError(CodeClient, http.StatusBadRequest, description)
}

// TitleNotFound is returned when a title is unknown or inactive.
func TitleNotFound(titleCode string) *Error {
	return newError(CodeTitleNotFound, http.StatusBadRequest, "Title is not found.").
		With("title_code", titleCode)
}

// CatalogNotFound is returned when a catalog is unknown or no catalog is active.
func CatalogNotFound(catalogCode string) *Error {
	e := newError(CodeCatalogNotFound, http.StatusBadRequest, "Catalog is not found.")
	if catalogCode != "" {
		e.With("catalog_code", catalogCode)
	}
	return e
}

// EntityNotFound is returned when an entity lookup has no match. key names
// what the lookup was by, entity_id or entity_code.
func EntityNotFound(key, value string) *Error {
	return newError(CodeEntityNotFound, http.StatusBadRequest, "Entity is not found.").
		With(key, value)
}

// Internal wraps an unexpected fault.
func Internal(err error) *Error {
	return newError(CodeInternal, http.StatusInternalServerError, "Internal server error.").
		WithCause(err)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
