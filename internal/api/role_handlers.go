// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/gatehouse/internal/apperr"
)

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

type grantRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,min=1"`
}

type replaceGrantsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
	ClearExisting bool    `json:"clear_existing"`
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("invalid %s", name)
	}
	return id, nil
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.graph.ListRoles(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, roles)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.GetRole(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, role)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, role)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, role)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.graph.DeleteRole(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	role, err := s.graph.GetRole(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	perms, err := s.graph.EffectivePermissions(r.Context(), []string{role.Name})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, perms)
}

func (s *Server) handleGrantPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	for _, pid := range req.PermissionIDs {
		if err := s.graph.Grant(r.Context(), id, pid); err != nil {
			respondError(w, r, err)
			return
		}
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "granted"})
}

func (s *Server) handleReplacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req replaceGrantsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.graph.Replace(r.Context(), id, req.PermissionIDs, req.ClearExisting); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "replaced"})
}

func (s *Server) handleRevokePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.graph.Revoke(r.Context(), id, req.PermissionIDs); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "revoked"})
}
