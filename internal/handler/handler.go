// Package handler contains the HTTP layer: thin echo handlers that decode
// requests, call the order engine and encode results. No business rules
// live here.
package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pttech/commerce/internal/domain"
)

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// httpStatus maps domain error codes to HTTP status codes.
func httpStatus(err error) int {
	switch domain.ErrorCode(err) {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EEXTERNAL:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the uniform error payload for a domain error.
func respondError(c echo.Context, err error) error {
	return c.JSON(httpStatus(err), errorResponse{
		Error: domain.ErrorMessage(err),
		Code:  domain.ErrorCode(err),
	})
}
