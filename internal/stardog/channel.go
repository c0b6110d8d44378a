// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"net/http"
	"net/url"
)

// ChannelKind names one of the two sparql protocol endpoints of a database
type ChannelKind string

const (
	QueryChannel  ChannelKind = "query"
	UpdateChannel ChannelKind = "update"
)

// sparqlChannel talks the plain sparql protocol to one sub endpoint of a database.
// A query channel only ever sends SELECT requests and an update channel only
// ever sends update requests.
type sparqlChannel struct {
	kind ChannelKind
	conn Connection
	url  string
}

func newChannel(conn Connection, database string, kind ChannelKind) *sparqlChannel {
	return &sparqlChannel{
		kind: kind,
		conn: conn,
		url:  conn.url(database, string(kind)),
	}
}

// selectRows issues a GET with the query in the query string
func (c *sparqlChannel) selectRows(ctx context.Context, query string) (resultSet, error) {
	if c.kind != QueryChannel {
		return resultSet{}, newError(KindInternal, "refusing to send a query on the %s channel", c.kind)
	}
	target := c.url + "?" + url.Values{"query": {query}}.Encode()
	body, err := c.conn.do(ctx, request{
		operation: "select",
		method:    http.MethodGet,
		target:    target,
		headers:   map[string]string{"Accept": sparqlResultsJSON},
	})
	if err != nil {
		return resultSet{}, err
	}
	return parseResults(body)
}

// update posts a form encoded sparql update
func (c *sparqlChannel) update(ctx context.Context, statement string) error {
	if c.kind != UpdateChannel {
		return newError(KindInternal, "refusing to send an update on the %s channel", c.kind)
	}
	body, headers := formBody(url.Values{"update": {statement}})
	_, err := c.conn.do(ctx, request{
		operation: "update",
		method:    http.MethodPost,
		target:    c.url,
		body:      body,
		headers:   headers,
	})
	return err
}
