// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package storeclient provides a typed HTTP client for the vault store
// service's /v1/* endpoints. The vault client library and the CLI use
// it for every privileged operation: fetching encrypted envelopes,
// writing rotations, listing metadata, and reading the audit log.
//
// The client mirrors the store's wire format with its own request and
// response types, avoiding an import dependency from client code back
// into the store implementation.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by Fetch when the store has no active secret
// under the requested name. Callers distinguish it from transport and
// server errors because the read path falls back differently for each.
var ErrNotFound = errors.New("storeclient: secret not found")

// DefaultTimeout bounds each store call when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 10 * time.Second

// Client is a typed HTTP client for the vault store service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
}

// Config carries the settings for New.
type Config struct {
	// BaseURL is the store service root, e.g. "http://127.0.0.1:8484".
	BaseURL string

	// Token is the privileged service token sent as a bearer
	// credential on every request.
	Token string

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New creates a Client for the store service at config.BaseURL.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("storeclient: base URL is required")
	}
	if config.Token == "" {
		return nil, errors.New("storeclient: service token is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		timeout:    timeout,
	}, nil
}

// NewForTesting creates a Client with a custom transport. Tests use it
// to redirect requests to an httptest.Server.
func NewForTesting(transport http.RoundTripper, baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    DefaultTimeout,
	}
}

// FetchResponse is the wire format for POST /v1/secrets/get.
type FetchResponse struct {
	Name            string `json:"name"`
	EncryptedValue  string `json:"encrypted_value"`
	RotationVersion int64  `json:"rotation_version"`
}

// Fetch retrieves the encrypted envelope for name. Returns ErrNotFound
// when no active secret exists under that name.
func (client *Client) Fetch(ctx context.Context, name string) (*FetchResponse, error) {
	request := struct {
		Name string `json:"name"`
	}{Name: name}

	response, err := client.post(ctx, "/v1/secrets/get", request)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %q: %w", name, ErrNotFound)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: HTTP %d: %s", name, response.StatusCode, errorBody(response.Body))
	}

	var result FetchResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fetch %q: decoding response: %w", name, err)
	}
	return &result, nil
}

// IncrementAccess bumps the access counter for name. Best-effort
// telemetry: the read path calls it asynchronously and only logs
// failures.
func (client *Client) IncrementAccess(ctx context.Context, name string) error {
	request := struct {
		Name string `json:"name"`
	}{Name: name}

	response, err := client.post(ctx, "/v1/secrets/increment-access", request)
	if err != nil {
		return fmt.Errorf("increment access %q: %w", name, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("increment access %q: HTTP %d: %s", name, response.StatusCode, errorBody(response.Body))
	}
	return nil
}

// UpsertRequest is the JSON body for POST /v1/secrets/upsert.
type UpsertRequest struct {
	Name           string `json:"name"`
	EncryptedValue string `json:"encrypted_value"`
	Fingerprint    string `json:"fingerprint"`
	Category       string `json:"category,omitempty"`
	UpdatedBy      string `json:"updated_by"`
	Notes          string `json:"notes,omitempty"`
	MaskedValue    string `json:"masked_value"`
}

// UpsertResponse is the wire format for a successful upsert.
type UpsertResponse struct {
	Name            string `json:"name"`
	RotationVersion int64  `json:"rotation_version"`
	WasUpdate       bool   `json:"was_update"`
}

// Upsert writes or rotates a secret. The store assigns the rotation
// version atomically and appends the audit row in the same transaction.
func (client *Client) Upsert(ctx context.Context, request UpsertRequest) (*UpsertResponse, error) {
	response, err := client.post(ctx, "/v1/secrets/upsert", request)
	if err != nil {
		return nil, fmt.Errorf("upsert %q: %w", request.Name, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upsert %q: HTTP %d: %s", request.Name, response.StatusCode, errorBody(response.Body))
	}

	var result UpsertResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("upsert %q: decoding response: %w", request.Name, err)
	}
	return &result, nil
}

// Deactivate soft-deletes a secret. Returns ErrNotFound if no active
// secret exists under that name.
func (client *Client) Deactivate(ctx context.Context, name string) error {
	request := struct {
		Name string `json:"name"`
	}{Name: name}

	response, err := client.post(ctx, "/v1/secrets/deactivate", request)
	if err != nil {
		return fmt.Errorf("deactivate %q: %w", name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("deactivate %q: %w", name, ErrNotFound)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("deactivate %q: HTTP %d: %s", name, response.StatusCode, errorBody(response.Body))
	}
	return nil
}

// SecretEntry is one row of GET /v1/secrets: metadata only, no
// encrypted envelope.
type SecretEntry struct {
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

// List returns metadata for every active secret.
func (client *Client) List(ctx context.Context) ([]SecretEntry, error) {
	response, err := client.get(ctx, "/v1/secrets")
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list secrets: HTTP %d: %s", response.StatusCode, errorBody(response.Body))
	}

	var result []SecretEntry
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("list secrets: decoding response: %w", err)
	}
	return result, nil
}

// AuditRecord is one row of GET /v1/audit.
type AuditRecord struct {
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

// Audit returns audit rows, newest first. An empty name returns rows
// for all secrets; limit <= 0 means the server default.
func (client *Client) Audit(ctx context.Context, name string, limit int) ([]AuditRecord, error) {
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/audit"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	response, err := client.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit log: HTTP %d: %s", response.StatusCode, errorBody(response.Body))
	}

	var result []AuditRecord
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("audit log: decoding response: %w", err)
	}
	return result, nil
}

// Healthy checks GET /healthz. Used by warm-up and the CLI status
// command to distinguish "store down" from "secret missing".
func (client *Client) Healthy(ctx context.Context) error {
	response, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: HTTP %d", response.StatusCode)
	}
	return nil
}

// get makes an authenticated GET request with the per-call timeout.
func (client *Client) get(ctx context.Context, path string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+client.token)
	return client.do(ctx, request)
}

// post makes an authenticated POST request with a JSON body and the
// per-call timeout.
func (client *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+client.token)
	request.Header.Set("Content-Type", "application/json")
	return client.do(ctx, request)
}

// do executes the request and reads the full body before the per-call
// timeout context is cancelled, so callers can decode at leisure.
func (client *Client) do(ctx context.Context, request *http.Request) (*http.Response, error) {
	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, 4<<20))
	response.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	response.Body = io.NopCloser(bytes.NewReader(body))
	return response, nil
}

// errorBody extracts a short error string from a response body for
// inclusion in error messages. Prefers the store's {"error": "..."}
// shape, falls back to the raw body, truncated.
func errorBody(reader io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(reader, 4096))
	if err != nil || len(body) == 0 {
		return "(no body)"
	}
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	return strings.TrimSpace(string(body))
}
