// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/stardog"

	"github.com/stretchr/testify/require"
)

func TestChecksFromConfig(t *testing.T) {
	require.Empty(t, ChecksFromConfig(config.AuthConfig{}))

	checks := ChecksFromConfig(config.AuthConfig{
		APITokens:         []string{"secret"},
		BasicAuthUser:     "admin",
		BasicAuthPassword: "admin",
	})
	require.Len(t, checks, 2)
	require.Equal(t, "bearer", checks[0].Name())
	require.Equal(t, "basic", checks[1].Name())
}

func TestBearerTokenCheck(t *testing.T) {
	check := BearerTokenCheck{Tokens: []string{"first", "second"}}

	req := httptest.NewRequest(http.MethodGet, "/databases", nil)
	require.ErrorIs(t, check.Authenticate(req), ErrNotAuthenticated)

	req.Header.Set("Authorization", "Bearer second")
	require.NoError(t, check.Authenticate(req))

	req.Header.Set("Authorization", "Bearer third")
	require.ErrorIs(t, check.Authenticate(req), ErrNotAuthenticated)

	req.Header.Del("Authorization")
	req.Header.Set("X-API-Key", "first")
	require.NoError(t, check.Authenticate(req))
}

func TestBasicAuthCheck(t *testing.T) {
	check := BasicAuthCheck{Username: "admin", Password: "secret"}

	req := httptest.NewRequest(http.MethodGet, "/databases", nil)
	require.ErrorIs(t, check.Authenticate(req), ErrNotAuthenticated)

	req.SetBasicAuth("admin", "wrong")
	require.ErrorIs(t, check.Authenticate(req), ErrNotAuthenticated)

	req.SetBasicAuth("admin", "secret")
	require.NoError(t, check.Authenticate(req))
}

func TestProtectedRoutes(t *testing.T) {
	mock := stardog.NewMockStardog()
	defer mock.Close()
	checks := []AuthCheck{
		BearerTokenCheck{Tokens: []string{"token"}},
		BasicAuthCheck{Username: "admin", Password: "secret"},
	}
	_, server := newTestServer(mock, config.ServerConfig{}, checks)
	defer server.Close()

	send := func(configure func(*http.Request)) *http.Response {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/databases", nil)
		require.NoError(t, err)
		configure(req)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := send(func(*http.Request) {})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	// every check has to pass, not just the first
	resp = send(func(r *http.Request) { r.Header.Set("X-API-Key", "token") })
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, `Basic realm="ontorec"`, resp.Header.Get("WWW-Authenticate"))

	resp = send(func(r *http.Request) {
		r.Header.Set("X-API-Key", "token")
		r.SetBasicAuth("admin", "secret")
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// health and metrics are never protected
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
