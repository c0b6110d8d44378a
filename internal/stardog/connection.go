// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ontotrans/ontorec/internal/common"
	"github.com/ontotrans/ontorec/internal/config"
	"github.com/ontotrans/ontorec/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Connection holds everything needed to reach one stardog server.
// It is shared by the admin client and every backend.
type Connection struct {
	// base url of the server, e.g. http://localhost:5820
	Endpoint string
	Username string
	Password string
	Client   *http.Client
}

func NewConnection(conf config.StardogConfig) Connection {
	return Connection{
		Endpoint: conf.Endpoint(),
		Username: conf.Username,
		Password: conf.Password,
		Client:   common.NewStoreClient(conf.Timeout),
	}
}

// withClient fills in a default client so every copy of the connection shares one
func (c Connection) withClient() Connection {
	if c.Client == nil {
		c.Client = common.NewStoreClient(common.DefaultStoreTimeout)
	}
	return c
}

// url joins escaped path segments onto the endpoint
func (c Connection) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(c.Endpoint, "/") + "/" + strings.Join(escaped, "/")
}

// a single call to stardog
type request struct {
	operation string
	method    string
	target    string
	body      io.Reader
	headers   map[string]string
}

// do sends the request and returns the body of a successful response.
// Every failure comes back as a *StoreError.
func (c Connection) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.target, r.body)
	if err != nil {
		return nil, wrapError(err, KindInternal, "could not build %s request", r.operation)
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", common.UserAgent)
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		metrics.StoreCallDuration.WithLabelValues(r.operation, "unreachable").Observe(time.Since(start).Seconds())
		log.Errorf("%s request to %s failed: %v", r.operation, r.target, err)
		return nil, wrapError(err, KindUnreachable, "cannot connect to stardog for %s", r.operation)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.StoreCallDuration.WithLabelValues(r.operation, "unreachable").Observe(time.Since(start).Seconds())
		return nil, wrapError(err, KindUnreachable, "failed to read %s response", r.operation)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.StoreCallDuration.WithLabelValues(r.operation, "error").Observe(time.Since(start).Seconds())
		storeErr := errorFromResponse(r.operation, resp, body)
		log.Error(storeErr)
		return nil, storeErr
	}
	metrics.StoreCallDuration.WithLabelValues(r.operation, "ok").Observe(time.Since(start).Seconds())
	return body, nil
}

func formBody(values url.Values) (io.Reader, map[string]string) {
	return strings.NewReader(values.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}
}
