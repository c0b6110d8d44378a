// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const namespacesOption = "database.namespaces"

// how long a rollback may take once the request that needed it is gone
const rollbackTimeout = 10 * time.Second

// session is the stateful connection to one database used for
// select with reasoning, transactional loads, export and namespaces
type session struct {
	conn     Connection
	database string

	// begin/add/commit sequences must not interleave
	txMu sync.Mutex
}

// openSession checks that the database answers before handing out a session
func openSession(ctx context.Context, conn Connection, database string) (*session, error) {
	_, err := conn.do(ctx, request{
		operation: "open session",
		method:    http.MethodGet,
		target:    conn.url(database, "size"),
	})
	if err != nil {
		return nil, err
	}
	return &session{conn: conn, database: database}, nil
}

func (s *session) selectQuery(ctx context.Context, query string, reasoning bool) (resultSet, error) {
	body, headers := formBody(url.Values{
		"query":     {query},
		"reasoning": {strconv.FormatBool(reasoning)},
	})
	headers["Accept"] = sparqlResultsJSON
	resp, err := s.conn.do(ctx, request{
		operation: "query",
		method:    http.MethodPost,
		target:    s.conn.url(s.database, "query"),
		body:      body,
		headers:   headers,
	})
	if err != nil {
		return resultSet{}, err
	}
	return parseResults(resp)
}

func (s *session) namespaces(ctx context.Context) (map[string]string, error) {
	resp, err := s.conn.do(ctx, request{
		operation: "list namespaces",
		method:    http.MethodGet,
		target:    s.conn.url(s.database, "namespaces"),
		headers:   map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	namespaces := make(map[string]string)
	gjson.GetBytes(resp, "namespaces").ForEach(func(_, ns gjson.Result) bool {
		namespaces[ns.Get("prefix").String()] = ns.Get("name").String()
		return true
	})
	return namespaces, nil
}

// namespaceEntries reads the raw prefix=iri entries stored in the database options
func (s *session) namespaceEntries(ctx context.Context) ([]string, error) {
	payload, err := json.Marshal(map[string]any{namespacesOption: nil})
	if err != nil {
		return nil, wrapError(err, KindInternal, "could not encode options request")
	}
	resp, err := s.conn.do(ctx, request{
		operation: "get namespace option",
		method:    http.MethodPut,
		target:    s.conn.url("admin", "databases", s.database, "options"),
		body:      strings.NewReader(string(payload)),
		headers:   map[string]string{"Content-Type": "application/json", "Accept": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	var entries []string
	for _, entry := range gjson.GetBytes(resp, `database\.namespaces`).Array() {
		entries = append(entries, entry.String())
	}
	return entries, nil
}

func (s *session) setNamespaceEntries(ctx context.Context, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	payload, err := json.Marshal(map[string]any{namespacesOption: entries})
	if err != nil {
		return wrapError(err, KindInternal, "could not encode options request")
	}
	_, err = s.conn.do(ctx, request{
		operation: "set namespace option",
		method:    http.MethodPost,
		target:    s.conn.url("admin", "databases", s.database, "options"),
		body:      strings.NewReader(string(payload)),
		headers:   map[string]string{"Content-Type": "application/json"},
	})
	return err
}

func (s *session) export(ctx context.Context, mediaType string) ([]byte, error) {
	return s.conn.do(ctx, request{
		operation: "export",
		method:    http.MethodGet,
		target:    s.conn.url(s.database, "export"),
		headers:   map[string]string{"Accept": mediaType},
	})
}

func (s *session) begin(ctx context.Context) (string, error) {
	resp, err := s.conn.do(ctx, request{
		operation: "begin transaction",
		method:    http.MethodPost,
		target:    s.conn.url(s.database, "transaction", "begin"),
	})
	if err != nil {
		return "", err
	}
	tx := strings.TrimSpace(string(resp))
	if tx == "" {
		return "", newError(KindInternal, "stardog did not return a transaction id for %s", s.database)
	}
	return tx, nil
}

func (s *session) add(ctx context.Context, tx string, content io.Reader, contentType string) error {
	_, err := s.conn.do(ctx, request{
		operation: "add",
		method:    http.MethodPost,
		target:    s.conn.url(s.database, tx, "add"),
		body:      content,
		headers:   map[string]string{"Content-Type": contentType},
	})
	return err
}

func (s *session) commit(ctx context.Context, tx string) error {
	_, err := s.conn.do(ctx, request{
		operation: "commit",
		method:    http.MethodPost,
		target:    s.conn.url(s.database, "transaction", "commit", tx),
	})
	return err
}

func (s *session) rollback(ctx context.Context, tx string) error {
	_, err := s.conn.do(ctx, request{
		operation: "rollback",
		method:    http.MethodPost,
		target:    s.conn.url(s.database, "transaction", "rollback", tx),
	})
	return err
}

// load adds content inside one transaction.
// Anything short of a successful commit rolls the transaction back.
func (s *session) load(ctx context.Context, content io.Reader, contentType string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// the request context may already be cancelled; the rollback still has to go out
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if rollbackErr := s.rollback(rollbackCtx, tx); rollbackErr != nil {
			log.Errorf("failed to roll back transaction %s on %s: %v", tx, s.database, rollbackErr)
		}
	}()

	if err := s.add(ctx, tx, content, contentType); err != nil {
		return err
	}
	if err := s.commit(ctx, tx); err != nil {
		return err
	}
	committed = true
	log.Debugf("committed transaction %s on %s", tx, s.database)
	return nil
}
