// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatabaseLifecycle(t *testing.T) {
	mock := NewMockStardog()
	defer mock.Close()
	admin := NewAdmin(mock.Connection())
	ctx := context.Background()

	databases, err := admin.ListDatabases(ctx)
	require.NoError(t, err)
	require.Empty(t, databases)

	created, err := admin.CreateDatabase(ctx, "materials")
	require.NoError(t, err)
	require.True(t, created)
	exists, err := admin.DatabaseExists(ctx, "materials")
	require.NoError(t, err)
	require.True(t, exists)

	// creating twice is a no-op
	created, err = admin.CreateDatabase(ctx, "materials")
	require.NoError(t, err)
	require.False(t, created)
	databases, err = admin.ListDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"materials"}, databases)

	require.NoError(t, admin.RemoveDatabase(ctx, "materials"))
	exists, err = admin.DatabaseExists(ctx, "materials")
	require.NoError(t, err)
	require.False(t, exists)

	// removing a missing database is a no-op
	require.NoError(t, admin.RemoveDatabase(ctx, "materials"))
}

func TestCreateDatabaseSendsNoRequestWhenPresent(t *testing.T) {
	mock := NewMockStardog()
	defer mock.Close()
	mock.AddDatabase("existing")
	admin := NewAdmin(mock.Connection())

	created, err := admin.CreateDatabase(context.Background(), "existing")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, []string{"GET /admin/databases"}, mock.Requests())
}

func TestConcurrentCreatesHaveOneCreator(t *testing.T) {
	mock := NewMockStardog()
	defer mock.Close()
	admin := NewAdmin(mock.Connection())

	const callers = 8
	var wg sync.WaitGroup
	created := make([]bool, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created[i], errs[i] = admin.CreateDatabase(context.Background(), "materials")
		}()
	}
	wg.Wait()

	creators := 0
	for i := range callers {
		require.NoError(t, errs[i])
		if created[i] {
			creators++
		}
	}
	require.Equal(t, 1, creators)
}

func TestAdminUnreachable(t *testing.T) {
	mock := NewMockStardog()
	conn := mock.Connection()
	mock.Close()

	admin := NewAdmin(conn)
	_, err := admin.ListDatabases(context.Background())
	require.True(t, IsKind(err, KindUnreachable))
	_, err = admin.CreateDatabase(context.Background(), "x")
	require.True(t, IsKind(err, KindUnreachable))
	require.True(t, IsKind(admin.RemoveDatabase(context.Background(), "x"), KindUnreachable))
}
