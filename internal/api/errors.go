// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/validation"
)

var (
	// ErrInvalidJSON indicates a request body that is not a single JSON object.
	ErrInvalidJSON = errors.New("invalid JSON body")

	// ErrBodyTooLarge indicates a request body over maxBodyBytes.
	ErrBodyTooLarge = errors.New("request body too large")
)

// respondError maps err onto the envelope. Validation failures keep their
// field messages; everything else is logged in full and answered with the
// sanitized public message.
func respondError(w http.ResponseWriter, r *http.Request, err error, public string) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		rw.ValidationError("Validation failed", verr.FieldErrors())
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrBodyTooLarge):
		rw.BadRequest(err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(public)
		rw.InternalError(public)
	}
}
