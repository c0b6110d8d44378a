// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/ontotrans/ontorec/internal/api"
	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/registry"
	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

// Serve runs the api until ctx is cancelled, then drains it
func Serve(ctx context.Context, cfg config.OntorecConfig) error {
	conn := stardog.NewConnection(cfg.Stardog)
	checks := api.ChecksFromConfig(cfg.Auth)
	if len(checks) == 0 {
		log.Warn("no authentication configured; the api is open to every caller")
	}
	server := api.NewServer(stardog.NewAdmin(conn), registry.New(), api.NewBackendFactory(conn), cfg.Server, checks)

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		log.Info("shutting down the api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errs
	}
}
