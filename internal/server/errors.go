package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/resume-optimizer/internal/pipeline"
)

// HTTPStatus returns the appropriate HTTP status code for an error from the
// pipeline layer.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
