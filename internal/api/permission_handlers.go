// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/tomtom215/gatehouse/internal/apperr"
)

type permissionRequest struct {
	Method string `json:"method" validate:"required"`
	Route  string `json:"route" validate:"required"`
	Action string `json:"action" validate:"required"`

	// FailOnDuplicate makes registration strict: an identical existing
	// triple is Conflict instead of idempotent success.
	FailOnDuplicate bool `json:"fail_on_duplicate"`
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.catalog.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, perms)
}

func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	var created any
	var err error
	if req.FailOnDuplicate {
		created, err = s.catalog.CreateOrFail(r.Context(), req.Method, req.Route, req.Action)
	} else {
		created, err = s.catalog.Register(r.Context(), req.Method, req.Route, req.Action)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "permissionID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}

// handleResolve exposes the resolver for diagnostics and permission-usage
// reporting: which action would this request map to, and from which source.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	path := r.URL.Query().Get("path")
	if method == "" || path == "" {
		respondError(w, r, apperr.BadRequest("method and path query parameters are required"))
		return
	}

	action, source, err := s.resolver.ResolveAction(r.Context(), method, path)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{
		"method": method,
		"path":   path,
		"action": action,
		"source": source,
	})
}
