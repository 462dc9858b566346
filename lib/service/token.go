// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ServiceTokenEnv names the environment variable carrying the
// privileged store credential. It is bootstrap material: clients
// without it cannot read encrypted envelopes, which is how the store
// enforces that ordinary code never touches encrypted_value directly.
const ServiceTokenEnv = "VAULT_SERVICE_TOKEN"

// VerifyBearerToken checks the Authorization header of a request
// against the expected service token in constant time. Returns nil on
// match. The error never includes either token value.
func VerifyBearerToken(request *http.Request, expected string) error {
	if expected == "" {
		return errors.New("service token: no expected token configured")
	}

	header := request.Header.Get("Authorization")
	if header == "" {
		return errors.New("service token: missing Authorization header")
	}
	presented, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return errors.New("service token: Authorization header is not a bearer token")
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return errors.New("service token: token mismatch")
	}
	return nil
}
