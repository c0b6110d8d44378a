// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package api serves the database management routes over http
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/metrics"
	"github.com/ontotrans/ontorec/internal/registry"
	"github.com/ontotrans/ontorec/internal/stardog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const homeMessage = "OntoREC API v1"

// Server owns everything a request needs: the admin client,
// the registry of open backends and the auth checks
type Server struct {
	admin    stardog.DatabaseAdmin
	registry *registry.Registry
	factory  registry.Factory
	config   config.ServerConfig
	checks   []AuthCheck
	limiter  *rate.Limiter

	httpServer *http.Server
}

// NewBackendFactory opens stardog backends for the registry
func NewBackendFactory(conn stardog.Connection) registry.Factory {
	return func(ctx context.Context, name string) (stardog.TripleStore, error) {
		return stardog.NewBackend(ctx, conn, name), nil
	}
}

func NewServer(admin stardog.DatabaseAdmin, reg *registry.Registry, factory registry.Factory, conf config.ServerConfig, checks []AuthCheck) *Server {
	s := &Server{
		admin:    admin,
		registry: reg,
		factory:  factory,
		config:   conf,
		checks:   checks,
	}
	if conf.RateLimit > 0 {
		burst := max(conf.RateBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), burst)
	}
	s.httpServer = &http.Server{
		Addr:         conf.Address,
		Handler:      s.Handler(),
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	}
	return s
}

// store returns the cached backend for a database, opening it on first use
func (s *Server) store(ctx context.Context, name string) (stardog.TripleStore, error) {
	return s.registry.GetOrCreate(ctx, name, s.factory)
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	observed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		log.Debugf("%s %s -> %d in %s", r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
	return otelhttp.NewHandler(observed, route)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			metrics.RateLimitedTotal.Inc()
			writeDetail(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler builds the mux with every route mounted under the configured path prefix
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	prefix := "/" + strings.Trim(s.config.PathPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	handle := func(method, path string, h http.HandlerFunc) {
		route := method + " " + prefix + path
		mux.Handle(route, s.instrument(route, s.rateLimit(requireAuth(s.checks, h))))
	}

	handle(http.MethodGet, "/{$}", s.home)

	handle(http.MethodGet, "/databases", s.listDatabases)
	handle(http.MethodGet, "/databases/{name}", s.getTriples)
	handle(http.MethodGet, "/databases/{name}/serialization", s.serialize)
	handle(http.MethodPost, "/databases/{name}/query", s.query)
	handle(http.MethodPost, "/databases/{name}/create", s.createDatabase)
	handle(http.MethodPost, "/databases/{name}", s.uploadOntology)
	handle(http.MethodPost, "/databases/{name}/single", s.addTriples)
	handle(http.MethodDelete, "/databases/{name}", s.deleteDatabase)
	handle(http.MethodDelete, "/databases/{name}/single", s.deleteTriples)

	handle(http.MethodGet, "/databases/{name}/namespaces", s.listNamespaces)
	handle(http.MethodGet, "/databases/{name}/namespaces/base", s.getBaseNamespace)
	handle(http.MethodGet, "/databases/{name}/namespaces/{prefix}", s.getNamespace)
	handle(http.MethodPost, "/databases/{name}/namespaces", s.addNamespace)
	handle(http.MethodDelete, "/databases/{name}/namespaces/base", s.deleteBaseNamespace)
	handle(http.MethodDelete, "/databases/{name}/namespaces/{prefix}", s.deleteNamespace)

	handle(http.MethodPost, "/databases/{name}/pgbs/model_training", s.addModelTraining)
	handle(http.MethodPost, "/databases/{name}/pgbs/model_evaluation", s.addModelEvaluation)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": homeMessage})
}

// ListenAndServe blocks until the server stops; a graceful Shutdown is not an error
func (s *Server) ListenAndServe() error {
	log.Infof("ontorec api listening on %s", s.config.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in flight requests and closes every cached backend
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.httpServer.Shutdown(ctx), s.registry.Close())
}
