// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/authz"
)

type assignRoleRequest struct {
	RoleName string `json:"role_name" validate:"required"`
}

// handleUserRoles lists the roles a principal holds, addressed by public ID.
func (s *Server) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	p, err := s.principals.FindByPublicID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	roles, err := s.principals.RoleNames(r.Context(), p.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"principal": p.PublicID,
		"roles":     roles,
	})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.principals.FindByPublicID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.GetRoleByName(r.Context(), req.RoleName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	assignedBy := int64(0)
	if claims, ok := authz.ClaimsFromContext(r.Context()); ok {
		if actor, err := s.principals.FindByPublicID(r.Context(), claims.Subject); err == nil {
			assignedBy = actor.ID
		}
	}

	if err := s.graph.AssignRole(r.Context(), p.ID, role.ID, assignedBy); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "assigned"})
}

func (s *Server) handleUnassignRole(w http.ResponseWriter, r *http.Request) {
	roleName := chi.URLParam(r, "roleName")
	if roleName == "" {
		respondError(w, r, apperr.BadRequest("role name is required"))
		return
	}

	p, err := s.principals.FindByPublicID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.GetRoleByName(r.Context(), roleName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.graph.UnassignRole(r.Context(), p.ID, role.ID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}
