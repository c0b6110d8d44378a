// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const UserAgent = "ontorec"

// The timeout used when the caller does not configure one
const DefaultStoreTimeout = 30 * time.Second

type MockResponse struct {
	File        string
	Body        string
	StatusCode  int
	ContentType string
	// If true, the request will return an error
	// signifying that the request timed out
	Timeout bool
}

type MockTransport struct {
	// Deny requests that are not mocked
	denyReqNotMocked bool
	transport        http.RoundTripper
	urlToFile        map[string]MockResponse
}

// Implements net.Error so callers can tell a mocked timeout from other failures
type mockTimeoutError struct {
	url string
}

func (e *mockTimeoutError) Error() string   { return fmt.Sprintf("mocked a timeout for %s", e.url) }
func (e *mockTimeoutError) Timeout() bool   { return true }
func (e *mockTimeoutError) Temporary() bool { return false }

// If the req url is in the map, return a mock response from the associated file
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {

	fullURL := req.URL.String()

	associatedMock, ok := m.urlToFile[fullURL]
	if ok {
		if associatedMock.Timeout {
			return nil, &mockTimeoutError{url: fullURL}
		}

		header := http.Header{"Content-Type": []string{associatedMock.ContentType}}
		if associatedMock.File == "" {
			return &http.Response{
				StatusCode: associatedMock.StatusCode,
				Body:       io.NopCloser(strings.NewReader(associatedMock.Body)),
				Header:     header,
				Request:    req,
			}, nil
		}
		mockedContent, err := os.Open(associatedMock.File)
		if err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: associatedMock.StatusCode,
			Body:       mockedContent,
			Header:     header,
			Request:    req,
		}, nil
	}
	if m.denyReqNotMocked {
		return nil, fmt.Errorf("request not mocked: %s", fullURL)
	}

	return m.transport.RoundTrip(req)
}

// NewMockedClient returns an http client with mocked responses
// if strictMode is true, all http requests that are not mocked will return an error
func NewMockedClient(strictMode bool, urlToMock map[string]MockResponse) *http.Client {

	transport := &MockTransport{
		transport:        newLongLivedHttpTransport(),
		urlToFile:        urlToMock,
		denyReqNotMocked: strictMode,
	}

	return newClientFromRoundTrip(transport, DefaultStoreTimeout)
}

// An http transport optimized for long-lived connections to a single store
func newLongLivedHttpTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       0,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   20 * time.Second,
		ExpectContinueTimeout: 2 * time.Second,
		DisableKeepAlives:     false,
		ForceAttemptHTTP2:     true,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			span := trace.SpanFromContext(ctx)
			if span != nil {
				span.AddEvent("HTTP connection")
			}
			return (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, network, addr)
		},
	}
}

func newClientFromRoundTrip(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewStoreClient returns the client used for every call to the triplestore.
// Requests are traced but never retried; a failed call is reported as is.
func NewStoreClient(timeout time.Duration) *http.Client {
	return newClientFromRoundTrip(otelhttp.NewTransport(newLongLivedHttpTransport()), timeout)
}
