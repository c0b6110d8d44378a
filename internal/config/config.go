// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ontotrans/ontorec/internal/common/projectpath"
)

// The top level config for all ontorec operations
type OntorecConfig struct {
	Stardog StardogConfig
	Server  ServerConfig
	Auth    AuthConfig
}

// The config for reaching the stardog instance that hosts every database
type StardogConfig struct {
	Host     string        `arg:"--stardog-host,env:ONTOKB_HOST" help:"host of the stardog server" default:"localhost"`
	Port     int           `arg:"--stardog-port,env:ONTOKB_PORT" help:"port of the stardog server" default:"5820"`
	Username string        `arg:"--stardog-username,env:ONTOKB_USERNAME" help:"username shared by every request to stardog" default:"admin"`
	Password string        `arg:"--stardog-password,env:ONTOKB_PASSWORD" help:"password for the stardog user" default:"admin"`
	SSL      bool          `arg:"--stardog-ssl" help:"use https when connecting to stardog"`
	Timeout  time.Duration `arg:"--stardog-timeout" help:"timeout for a single call to stardog" default:"30s"`
}

// Endpoint is the base url of the stardog server, without a database
func (c StardogConfig) Endpoint() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// The config for the http api
type ServerConfig struct {
	Address      string        `arg:"--address,env:ONTOREC_ADDRESS" help:"address the api listens on" default:"0.0.0.0:8000"`
	PathPrefix   string        `arg:"--path-prefix,env:ONTOREC_PATH_PREFIX" help:"prefix all api routes are mounted under, e.g. /ontorec/api/v1"`
	SeedOntology string        `arg:"--seed-ontology" help:"turtle file used to seed new databases, relative to the project root" default:"ontologies/emmo.ttl"`
	RateLimit    float64       `arg:"--rate-limit" help:"requests per second accepted by the api; 0 disables limiting" default:"0"`
	RateBurst    int           `arg:"--rate-burst" help:"burst size for the rate limiter" default:"20"`
	ReadTimeout  time.Duration `arg:"--read-timeout" default:"60s"`
	WriteTimeout time.Duration `arg:"--write-timeout" default:"120s"`
}

// SeedOntologyPath resolves the seed ontology; relative paths that do not exist
// from the working directory are taken relative to the project root
func (c ServerConfig) SeedOntologyPath() string {
	if c.SeedOntology == "" || filepath.IsAbs(c.SeedOntology) {
		return c.SeedOntology
	}
	if _, err := os.Stat(c.SeedOntology); err == nil {
		return c.SeedOntology
	}
	return filepath.Join(projectpath.Root, c.SeedOntology)
}

// The config for authenticating api callers
// each non empty field adds one check to the chain
type AuthConfig struct {
	APITokens         []string `arg:"--api-token,separate,env:ONTOREC_API_TOKENS" help:"bearer tokens accepted by the api"`
	BasicAuthUser     string   `arg:"--basic-auth-user,env:ONTOREC_BASIC_AUTH_USER"`
	BasicAuthPassword string   `arg:"--basic-auth-password,env:ONTOREC_BASIC_AUTH_PASSWORD"`
}
