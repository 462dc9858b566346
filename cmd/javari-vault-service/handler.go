// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/javari-foundation/vault/lib/clock"
	"github.com/javari-foundation/vault/lib/service"
	"github.com/javari-foundation/vault/lib/vaultstore"
)

// defaultAuditLimit bounds GET /v1/audit when the client does not ask
// for a specific limit.
const defaultAuditLimit = 100

// VaultService is the RPC surface over the secret store. Every route
// except /healthz requires the service token.
type VaultService struct {
	store     *vaultstore.Store
	token     string
	clock     clock.Clock
	logger    *slog.Logger
	startedAt time.Time
}

// Handler builds the route table.
func (s *VaultService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/secrets/get", s.authenticated(s.handleGet))
	mux.HandleFunc("POST /v1/secrets/increment-access", s.authenticated(s.handleIncrementAccess))
	mux.HandleFunc("POST /v1/secrets/upsert", s.authenticated(s.handleUpsert))
	mux.HandleFunc("POST /v1/secrets/deactivate", s.authenticated(s.handleDeactivate))
	mux.HandleFunc("GET /v1/secrets", s.authenticated(s.handleList))
	mux.HandleFunc("GET /v1/audit", s.authenticated(s.handleAudit))
	return mux
}

// authenticated wraps a handler with bearer token verification.
func (s *VaultService) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if err := service.VerifyBearerToken(request, s.token); err != nil {
			s.logger.Warn("rejected request",
				"path", request.URL.Path, "remote", request.RemoteAddr, "error", err)
			writeError(writer, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(writer, request)
	}
}

// healthzResponse is the unauthenticated liveness payload. Aggregate
// state only — no secret names.
type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *VaultService) handleHealthz(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, healthzResponse{
		Status:        "ok",
		UptimeSeconds: s.clock.Now().Sub(s.startedAt).Seconds(),
	})
}

// nameRequest is the shared body for get, increment-access, and
// deactivate.
type nameRequest struct {
	Name string `json:"name"`
}

func (s *VaultService) handleGet(writer http.ResponseWriter, request *http.Request) {
	var body nameRequest
	if !decodeBody(writer, request, &body) {
		return
	}
	if body.Name == "" {
		writeError(writer, http.StatusBadRequest, "name is required")
		return
	}

	envelope, rotationVersion, err := s.store.GetSecret(request.Context(), body.Name)
	if errors.Is(err, vaultstore.ErrNotFound) {
		writeError(writer, http.StatusNotFound, "secret not found")
		return
	}
	if err != nil {
		s.logger.Error("get secret failed", "secret", body.Name, "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{
		"name":             body.Name,
		"encrypted_value":  envelope,
		"rotation_version": rotationVersion,
	})
}

func (s *VaultService) handleIncrementAccess(writer http.ResponseWriter, request *http.Request) {
	var body nameRequest
	if !decodeBody(writer, request, &body) {
		return
	}
	if err := s.store.IncrementAccess(request.Context(), body.Name); err != nil {
		s.logger.Error("increment access failed", "secret", body.Name, "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *VaultService) handleUpsert(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Name           string `json:"name"`
		EncryptedValue string `json:"encrypted_value"`
		Fingerprint    string `json:"fingerprint"`
		Category       string `json:"category"`
		UpdatedBy      string `json:"updated_by"`
		Notes          string `json:"notes"`
		MaskedValue    string `json:"masked_value"`
	}
	if !decodeBody(writer, request, &body) {
		return
	}

	result, err := s.store.UpsertSecret(request.Context(), vaultstore.UpsertParams{
		Name:           body.Name,
		EncryptedValue: body.EncryptedValue,
		Fingerprint:    body.Fingerprint,
		Category:       body.Category,
		UpdatedBy:      body.UpdatedBy,
		Notes:          body.Notes,
		MaskedValue:    body.MaskedValue,
	})
	if errors.Is(err, vaultstore.ErrInvalid) {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("upsert failed", "secret", body.Name, "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{
		"name":             body.Name,
		"rotation_version": result.RotationVersion,
		"was_update":       result.WasUpdate,
	})
}

func (s *VaultService) handleDeactivate(writer http.ResponseWriter, request *http.Request) {
	var body nameRequest
	if !decodeBody(writer, request, &body) {
		return
	}
	err := s.store.Deactivate(request.Context(), body.Name)
	if errors.Is(err, vaultstore.ErrNotFound) {
		writeError(writer, http.StatusNotFound, "secret not found")
		return
	}
	if err != nil {
		s.logger.Error("deactivate failed", "secret", body.Name, "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

// secretEntry is the list wire format. The encrypted envelope is
// deliberately absent: listing is a metadata operation.
type secretEntry struct {
	Name             string     `json:"name"`
	Category         string     `json:"category"`
	MaskedValue      string     `json:"masked_value"`
	Fingerprint      string     `json:"fingerprint"`
	RotationVersion  int64      `json:"rotation_version"`
	UpdatedBy        string     `json:"updated_by"`
	UpdatedAt        time.Time  `json:"updated_at"`
	IsActive         bool       `json:"is_active"`
	AccessCount      int64      `json:"access_count"`
	ValidationStatus string     `json:"validation_status"`
	LastValidated    *time.Time `json:"last_validated,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

func (s *VaultService) handleList(writer http.ResponseWriter, request *http.Request) {
	secrets, err := s.store.ListSecrets(request.Context())
	if err != nil {
		s.logger.Error("list secrets failed", "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}

	entries := make([]secretEntry, 0, len(secrets))
	for _, secret := range secrets {
		entries = append(entries, secretEntry{
			Name:             secret.Name,
			Category:         secret.Category,
			MaskedValue:      secret.MaskedValue,
			Fingerprint:      secret.Fingerprint,
			RotationVersion:  secret.RotationVersion,
			UpdatedBy:        secret.UpdatedBy,
			UpdatedAt:        secret.UpdatedAt,
			IsActive:         secret.IsActive,
			AccessCount:      secret.AccessCount,
			ValidationStatus: secret.ValidationStatus,
			LastValidated:    secret.LastValidated,
			Notes:            secret.Notes,
		})
	}
	writeJSON(writer, http.StatusOK, entries)
}

// auditRecord is the audit wire format.
type auditRecord struct {
	ID              int64     `json:"id"`
	SecretName      string    `json:"secret_name"`
	Action          string    `json:"action"`
	Actor           string    `json:"actor"`
	Category        string    `json:"category"`
	RotationVersion int64     `json:"rotation_version"`
	Fingerprint     string    `json:"fingerprint"`
	MaskedValue     string    `json:"masked_value"`
	EntryHash       string    `json:"entry_hash"`
	Timestamp       time.Time `json:"timestamp"`
}

func (s *VaultService) handleAudit(writer http.ResponseWriter, request *http.Request) {
	name := request.URL.Query().Get("name")
	limit := defaultAuditLimit
	if raw := request.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(writer, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.store.AuditEntries(request.Context(), name, limit)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeError(writer, http.StatusInternalServerError, "storage error")
		return
	}

	records := make([]auditRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, auditRecord{
			ID:              entry.ID,
			SecretName:      entry.SecretName,
			Action:          entry.Action,
			Actor:           entry.Actor,
			Category:        entry.Category,
			RotationVersion: entry.RotationVersion,
			Fingerprint:     entry.Fingerprint,
			MaskedValue:     entry.MaskedValue,
			EntryHash:       entry.EntryHash,
			Timestamp:       entry.Timestamp,
		})
	}
	writeJSON(writer, http.StatusOK, records)
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(writer http.ResponseWriter, request *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(payload)
}

func writeError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, map[string]string{"error": message})
}
