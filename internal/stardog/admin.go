// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"slices"

	"github.com/ontotrans/ontorec/internal/opentelemetry"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Admin manages databases on the stardog server; it is created once per process
type Admin struct {
	conn Connection
}

func NewAdmin(conn Connection) *Admin {
	return &Admin{conn: conn.withClient()}
}

// Connection returns the connection backends for this server should share
func (a *Admin) Connection() Connection {
	return a.conn
}

// ListDatabases returns the name of every database on the server
func (a *Admin) ListDatabases(ctx context.Context) ([]string, error) {
	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()

	body, err := a.conn.do(ctx, request{
		operation: "list databases",
		method:    http.MethodGet,
		target:    a.conn.url("admin", "databases"),
		headers:   map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	databases := []string{}
	for _, name := range gjson.GetBytes(body, "databases").Array() {
		databases = append(databases, name.String())
	}
	return databases, nil
}

func (a *Admin) DatabaseExists(ctx context.Context, name string) (bool, error) {
	databases, err := a.ListDatabases(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(databases, name), nil
}

// CreateDatabase creates an empty database and reports whether this call created it.
// An existing name is left untouched and reported as false.
func (a *Admin) CreateDatabase(ctx context.Context, name string) (bool, error) {
	exists, err := a.DatabaseExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		log.Warnf("Database %s already exists so skipping creation", name)
		return false, nil
	}

	root, err := json.Marshal(map[string]any{
		"dbname":  name,
		"options": map[string]any{},
		"files":   []any{},
	})
	if err != nil {
		return false, wrapError(err, KindInternal, "failed to encode database options")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("root", string(root)); err != nil {
		return false, wrapError(err, KindInternal, "failed to create form field")
	}
	// Close the multipart writer to finalize the body
	if err := writer.Close(); err != nil {
		return false, wrapError(err, KindInternal, "failed to close writer")
	}

	_, err = a.conn.do(ctx, request{
		operation: "create database",
		method:    http.MethodPost,
		target:    a.conn.url("admin", "databases"),
		body:      body,
		headers:   map[string]string{"Content-Type": writer.FormDataContentType()},
	})
	if IsKind(err, KindConflict) {
		// created by someone else between the listing and our request
		log.Warnf("Database %s already exists so skipping creation", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Infof("Created database %s", name)
	return true, nil
}

// RemoveDatabase drops a database; a missing name is not an error
func (a *Admin) RemoveDatabase(ctx context.Context, name string) error {
	_, err := a.conn.do(ctx, request{
		operation: "drop database",
		method:    http.MethodDelete,
		target:    a.conn.url("admin", "databases", name),
	})
	if IsKind(err, KindDatabaseNotFound) {
		log.Warnf("Database %s does not exist so skipping removal", name)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("Dropped database %s", name)
	return nil
}
