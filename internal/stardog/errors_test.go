// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ontotrans/ontorec/internal/common"
	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/stretchr/testify/require"
)

func TestErrorFromResponse(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header string
		body   string
		kind   ErrorKind
	}{
		{"missing database header", http.StatusNotFound, CodeDatabaseMissing, "", KindDatabaseNotFound},
		{"missing database body", http.StatusBadRequest, "", `{"code":"0D0DU2","message":"Database 'x' does not exist."}`, KindDatabaseNotFound},
		{"parse error", http.StatusBadRequest, "", `{"code":"QE0PE2","message":"Encountered \"SELEC\""}`, KindMalformed},
		{"already exists", http.StatusBadRequest, CodeDatabaseExists, "", KindConflict},
		{"plain 404", http.StatusNotFound, "", "not here", KindDatabaseNotFound},
		{"plain 400", http.StatusBadRequest, "", "bad", KindMalformed},
		{"plain 409", http.StatusConflict, "", "", KindConflict},
		{"bad credentials", http.StatusUnauthorized, "", "", KindUnreachable},
		{"server error", http.StatusInternalServerError, "", "boom", KindInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: c.status, Header: http.Header{}}
			if c.header != "" {
				resp.Header.Set("SD-Error-Code", c.header)
			}
			err := errorFromResponse("test", resp, []byte(c.body))
			require.Equal(t, c.kind, KindOf(err))
		})
	}
}

func TestErrorMessageUsesStoreMessage(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}
	err := errorFromResponse("query", resp, []byte(`{"code":"QE0PE2","message":"unexpected token"}`))
	require.Contains(t, err.Error(), "unexpected token")
	require.Contains(t, err.Error(), string(KindMalformed))

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, CodeQueryParse, storeErr.Code)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
	require.Equal(t, KindDecode, KindOf(&rdfterm.DecodeError{Type: "triple"}))
	require.Equal(t, KindMalformed, KindOf(fmt.Errorf("wrapped: %w", rdfterm.ErrMalformedTerm)))
	require.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", newError(KindConflict, "x"))))
	require.False(t, IsKind(nil, KindInternal))
}

func TestTimeoutIsUnreachable(t *testing.T) {
	conn := Connection{
		Endpoint: "http://stardog.invalid:5820",
		Client: common.NewMockedClient(true, map[string]common.MockResponse{
			"http://stardog.invalid:5820/admin/databases": {Timeout: true},
		}),
	}
	admin := NewAdmin(conn)
	_, err := admin.ListDatabases(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, KindUnreachable))
}

func TestWrongCredentialsAreUnreachable(t *testing.T) {
	conn := Connection{
		Endpoint: "http://stardog.invalid:5820",
		Client: common.NewMockedClient(true, map[string]common.MockResponse{
			"http://stardog.invalid:5820/admin/databases": {StatusCode: http.StatusUnauthorized, Body: "Unauthorized"},
		}),
	}
	_, err := NewAdmin(conn).ListDatabases(context.Background())
	require.True(t, IsKind(err, KindUnreachable))
}
