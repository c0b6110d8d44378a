// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"iter"

	"github.com/ontotrans/ontorec/internal/rdfterm"
)

// assert that the stardog clients implement the interfaces
var _ TripleStore = &Backend{}
var _ DatabaseAdmin = &Admin{}

// The set of operations the api needs from one database
type TripleStore interface {
	// Yields every triple matching the pattern
	Triples(ctx context.Context, pattern rdfterm.Pattern) iter.Seq2[rdfterm.Triple, error]

	// Inserts all triples or none
	AddTriples(ctx context.Context, triples []rdfterm.Triple) error

	// Deletes every triple matching the pattern
	Remove(ctx context.Context, pattern rdfterm.Pattern) error

	// Runs a sparql query, optionally with reasoning
	Query(ctx context.Context, sparql string, reasoning bool) ([][]rdfterm.Term, error)

	Namespaces(ctx context.Context) (map[string]string, error)

	// Binds a prefix, or removes it when iri is nil
	Bind(ctx context.Context, prefix string, iri *string) error

	Serialize(ctx context.Context, format Format, dest Destination) (string, error)

	Parse(ctx context.Context, input ParseInput, format Format) error

	Close() error
}

// The set of server wide operations
type DatabaseAdmin interface {
	ListDatabases(ctx context.Context) ([]string, error)
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) (bool, error)
	RemoveDatabase(ctx context.Context, name string) error
}
