// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the shared runtime pieces for vault
// binaries: the standard structured logger and an HTTP server with
// managed lifecycle (bind, readiness signal, graceful shutdown).
//
// The store service uses HTTPServer for its /v1/* RPC surface; the
// caller provides the http.Handler (routing, authorization, request
// processing). Service-token verification lives here too so every
// handler compares tokens in constant time the same way.
package service
