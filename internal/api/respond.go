// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package api exposes the HTTP surface: credential routes, role and
// permission management, assignment management, and diagnostics, wired
// through the authz middleware pipeline.
package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/logging"
)

// validate is the shared validator instance; tag parsing is cached per type.
var validate = validator.New(validator.WithRequiredStructEnabled())

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("response encode failed")
	}
}

// respondError delegates to the shared taxonomy-to-status mapping.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	authz.WriteError(w, r, err)
}

// decodeJSON decodes and validates a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.BadRequest("malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.BadRequest("validation failed: %s", validationMessage(err))
	}
	return nil
}

// validationMessage flattens validator errors into one client-safe line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request body"
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fe.Field() + " failed " + fe.Tag()
	}
	return msg
}
