package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/jobs"
	"github.com/dvloznov/balance-indicators/internal/normalize"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
)

// StatusFor maps an error to the HTTP status reported to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, normalize.ErrStructural),
		errors.Is(err, normalize.ErrDecode),
		errors.Is(err, domain.ErrUnknownPeriod):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
