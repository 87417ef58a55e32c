package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/worklane/worklane-api/internal/repository"
)

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Detail  string       `json:"detail,omitempty"` // development mode only
}

// FieldError is one structured validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// apiError couples a caller-visible message with an HTTP status.  Handlers
// return these for every expected failure; the translator in fail() maps
// everything else to a generic 500.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func errUnauthorized(message string) error { return &apiError{http.StatusUnauthorized, message} }
func errValidation(message string) error   { return &apiError{http.StatusBadRequest, message} }
func errNotFound(resource string) error {
	return &apiError{http.StatusNotFound, resource + " not found"}
}
func errAlreadyExists(resource string) error {
	return &apiError{http.StatusConflict, resource + " already exists"}
}
func errInvalidCredentials() error {
	return &apiError{http.StatusUnauthorized, "Invalid email or password"}
}
func errAccountInactive() error {
	return &apiError{http.StatusUnauthorized, "Account is inactive or suspended"}
}

// responder writes envelopes.  The dev flag gates whether internal error
// detail leaks into responses; in production unknown errors surface only
// as the fallback message.
type responder struct {
	dev bool
}

func (r responder) success(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func (r responder) invalid(c echo.Context, errs []FieldError) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Success: false,
		Message: "Validation error",
		Errors:  errs,
	})
}

// fail is the single error translator.  Known error kinds keep their
// status; persistence sentinels are mapped to the taxonomy instead of
// leaking storage-engine errors; anything unknown becomes a 500 with the
// handler-provided fallback message.
func (r responder) fail(c echo.Context, err error, fallback string) error {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return c.JSON(ae.status, envelope{Success: false, Message: ae.message})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, envelope{
			Success: false,
			Message: "A record with this information already exists",
		})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, envelope{Success: false, Message: "Record not found"})
	}
	resp := envelope{Success: false, Message: fallback}
	if r.dev {
		resp.Detail = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
