// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/ontotrans/ontorec/internal/config"

	log "github.com/sirupsen/logrus"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// AuthCheck decides whether a request may reach the api
type AuthCheck interface {
	Name() string
	Authenticate(r *http.Request) error
}

// BearerTokenCheck accepts requests carrying one of a fixed set of tokens,
// either as a bearer Authorization header or in X-API-Key
type BearerTokenCheck struct {
	Tokens []string
}

func (c BearerTokenCheck) Name() string { return "bearer" }

func (c BearerTokenCheck) Authenticate(r *http.Request) error {
	token := r.Header.Get("X-API-Key")
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = bearer
	}
	if token == "" {
		return ErrNotAuthenticated
	}
	for _, candidate := range c.Tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			return nil
		}
	}
	return ErrNotAuthenticated
}

type BasicAuthCheck struct {
	Username string
	Password string
}

func (c BasicAuthCheck) Name() string { return "basic" }

func (c BasicAuthCheck) Authenticate(r *http.Request) error {
	user, password, ok := r.BasicAuth()
	if !ok {
		return ErrNotAuthenticated
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(c.Username))
	passwordMatch := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	if userMatch&passwordMatch != 1 {
		return ErrNotAuthenticated
	}
	return nil
}

// ChecksFromConfig builds the check list in a fixed order: bearer tokens, then basic auth.
// An empty config yields no checks and leaves the api open.
func ChecksFromConfig(conf config.AuthConfig) []AuthCheck {
	var checks []AuthCheck
	if len(conf.APITokens) > 0 {
		checks = append(checks, BearerTokenCheck{Tokens: conf.APITokens})
	}
	if conf.BasicAuthUser != "" {
		checks = append(checks, BasicAuthCheck{Username: conf.BasicAuthUser, Password: conf.BasicAuthPassword})
	}
	return checks
}

func challengeFor(check AuthCheck) string {
	if check.Name() == "basic" {
		return `Basic realm="ontorec"`
	}
	return "Bearer"
}

// requireAuth runs every check in order; the first failure answers 401
func requireAuth(checks []AuthCheck, next http.Handler) http.Handler {
	if len(checks) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check.Authenticate(r); err != nil {
				log.Debugf("%s check rejected %s %s", check.Name(), r.Method, r.URL.Path)
				w.Header().Set("WWW-Authenticate", challengeFor(check))
				writeDetail(w, http.StatusUnauthorized, detailNotAuthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
