// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testDatabase = "test"

var (
	alice    = rdfterm.IRI("http://example.com/alice")
	bob      = rdfterm.IRI("http://example.com/bob")
	knows    = rdfterm.IRI("http://xmlns.com/foaf/0.1/knows")
	foafName = rdfterm.IRI("http://xmlns.com/foaf/0.1/name")
	foafAge  = rdfterm.IRI("http://xmlns.com/foaf/0.1/age")
)

func sampleTriples() []rdfterm.Triple {
	return []rdfterm.Triple{
		{Subject: alice, Predicate: knows, Object: bob},
		{Subject: alice, Predicate: foafName, Object: rdfterm.NewLangLiteral("Alice", "en")},
		{Subject: alice, Predicate: foafAge, Object: rdfterm.NewTypedLiteral("42", "http://www.w3.org/2001/XMLSchema#integer")},
		{Subject: bob, Predicate: foafName, Object: rdfterm.NewLiteral("Bob")},
	}
}

type BackendSuite struct {
	suite.Suite
	mock    *MockStardog
	backend *Backend
	ctx     context.Context
}

func (suite *BackendSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.mock = NewMockStardog()
	suite.mock.AddDatabase(testDatabase)
	suite.backend = NewBackend(suite.ctx, suite.mock.Connection(), testDatabase)
	suite.mock.ResetRequests()
}

func (suite *BackendSuite) TearDownTest() {
	require.NoError(suite.T(), suite.backend.Close())
	suite.mock.Close()
}

func (suite *BackendSuite) TestAddedTriplesAreReturned() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))

	triples, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.Pattern{Subject: alice}))
	require.NoError(t, err)
	require.ElementsMatch(t, sampleTriples()[:3], triples)

	all, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.AnyTriple))
	require.NoError(t, err)
	require.ElementsMatch(t, sampleTriples(), all)
}

func (suite *BackendSuite) TestFullyBoundPattern() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))

	present := sampleTriples()[0]
	triples, err := CollectTriples(suite.backend.Triples(suite.ctx, present.Pattern()))
	require.NoError(t, err)
	require.Equal(t, []rdfterm.Triple{present}, triples)

	absent := rdfterm.Pattern{Subject: bob, Predicate: knows, Object: alice}
	triples, err = CollectTriples(suite.backend.Triples(suite.ctx, absent))
	require.NoError(t, err)
	require.Empty(t, triples)
}

func (suite *BackendSuite) TestTriplesIsLazyAndRestartable() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))
	suite.mock.ResetRequests()

	seq := suite.backend.Triples(suite.ctx, rdfterm.AnyTriple)
	require.Empty(t, suite.mock.Requests(), "no query before iteration")

	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
		break
	}
	require.Equal(t, 1, count)

	again, err := CollectTriples(seq)
	require.NoError(t, err)
	require.Len(t, again, len(sampleTriples()))
	require.Len(t, suite.mock.Requests(), 2)
}

func (suite *BackendSuite) TestRemoveUsesBoundTerms() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))

	require.NoError(t, suite.backend.Remove(suite.ctx, rdfterm.Pattern{Predicate: foafName}))
	remaining, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.AnyTriple))
	require.NoError(t, err)
	require.ElementsMatch(t, []rdfterm.Triple{sampleTriples()[0], sampleTriples()[2]}, remaining)

	// removing something that is not there succeeds
	require.NoError(t, suite.backend.Remove(suite.ctx, rdfterm.Pattern{Subject: bob, Predicate: knows, Object: alice}))

	require.NoError(t, suite.backend.Remove(suite.ctx, sampleTriples()[0].Pattern()))
	remaining, err = CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.AnyTriple))
	require.NoError(t, err)
	require.Equal(t, []rdfterm.Triple{sampleTriples()[2]}, remaining)
}

func (suite *BackendSuite) TestChannelSwitching() {
	t := suite.T()
	require.Equal(t, QueryChannel, suite.backend.ActiveChannel())

	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))
	require.Equal(t, UpdateChannel, suite.backend.ActiveChannel())

	_, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.AnyTriple))
	require.NoError(t, err)
	require.Equal(t, QueryChannel, suite.backend.ActiveChannel())

	require.NoError(t, suite.backend.Remove(suite.ctx, rdfterm.AnyTriple))
	require.Equal(t, UpdateChannel, suite.backend.ActiveChannel())

	require.Equal(t, []string{
		"POST /test/update",
		"GET /test/query",
		"POST /test/update",
	}, suite.mock.Requests())
}

func (suite *BackendSuite) TestAddRejectsUnboundPositions() {
	t := suite.T()
	err := suite.backend.AddTriples(suite.ctx, []rdfterm.Triple{{Subject: alice, Predicate: knows}})
	require.True(t, IsKind(err, KindArgument))
	require.Empty(t, suite.mock.Requests())

	require.NoError(t, suite.backend.AddTriples(suite.ctx, nil))
}

func (suite *BackendSuite) TestQuery() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))

	rows, err := suite.backend.Query(suite.ctx, "SELECT ?o WHERE { <http://example.com/bob> <http://xmlns.com/foaf/0.1/name> ?o }", true)
	require.NoError(t, err)
	require.Equal(t, [][]rdfterm.Term{{rdfterm.NewLiteral("Bob")}}, rows)

	// a projected variable without a binding comes back as nil
	rows, err = suite.backend.Query(suite.ctx, "SELECT ?s ?missing WHERE { ?s <http://xmlns.com/foaf/0.1/knows> ?o . }", false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, alice, rows[0][0])
	require.Nil(t, rows[0][1])

	_, err = suite.backend.Query(suite.ctx, "SELEC ?s WHERE { ?s ?p ?o }", false)
	require.True(t, IsKind(err, KindMalformed))

	require.Contains(t, suite.mock.Requests(), "POST /test/query")
}

func (suite *BackendSuite) TestNamespaces() {
	t := suite.T()
	namespaces, err := suite.backend.Namespaces(suite.ctx)
	require.NoError(t, err)
	require.Equal(t, "http://api.stardog.com/", namespaces[""])
	require.Equal(t, "http://www.w3.org/2002/07/owl#", namespaces["owl"])

	emmo := "http://emmo.info/emmo#"
	require.NoError(t, suite.backend.Bind(suite.ctx, "emmo", &emmo))
	// binding the same iri again changes nothing
	require.NoError(t, suite.backend.Bind(suite.ctx, "emmo", &emmo))

	other := "http://example.com/other#"
	err = suite.backend.Bind(suite.ctx, "emmo", &other)
	require.True(t, IsKind(err, KindConflict))

	namespaces, err = suite.backend.Namespaces(suite.ctx)
	require.NoError(t, err)
	require.Equal(t, emmo, namespaces["emmo"])

	require.NoError(t, suite.backend.Bind(suite.ctx, "emmo", nil))
	namespaces, err = suite.backend.Namespaces(suite.ctx)
	require.NoError(t, err)
	require.NotContains(t, namespaces, "emmo")

	// removing an unknown prefix is a no-op
	require.NoError(t, suite.backend.Bind(suite.ctx, "emmo", nil))
}

func (suite *BackendSuite) TestConcurrentBindsKeepEveryPrefix() {
	t := suite.T()
	const binds = 20

	var wg sync.WaitGroup
	errs := make(chan error, binds)
	for i := range binds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			iri := fmt.Sprintf("http://example.com/ns%d#", i)
			errs <- suite.backend.Bind(suite.ctx, fmt.Sprintf("ns%d", i), &iri)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	namespaces, err := suite.backend.Namespaces(suite.ctx)
	require.NoError(t, err)
	for i := range binds {
		require.Equal(t, fmt.Sprintf("http://example.com/ns%d#", i), namespaces[fmt.Sprintf("ns%d", i)])
	}
	require.Equal(t, "http://www.w3.org/2002/07/owl#", namespaces["owl"])
}

func (suite *BackendSuite) TestConcurrentConflictingBindsHaveOneWinner() {
	t := suite.T()
	for round := range 10 {
		prefix := fmt.Sprintf("race%d", round)
		iris := []string{"http://example.com/first#", "http://example.com/second#"}

		var wg sync.WaitGroup
		errs := make([]error, len(iris))
		for i := range iris {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = suite.backend.Bind(suite.ctx, prefix, &iris[i])
			}()
		}
		wg.Wait()

		winners := 0
		winner := ""
		for i, err := range errs {
			if err == nil {
				winners++
				winner = iris[i]
				continue
			}
			require.True(t, IsKind(err, KindConflict), "unexpected error: %v", err)
		}
		require.Equal(t, 1, winners, "round %d", round)

		namespaces, err := suite.backend.Namespaces(suite.ctx)
		require.NoError(t, err)
		require.Equal(t, winner, namespaces[prefix])
	}
}

func (suite *BackendSuite) TestBlankNodePatternsAreRejected() {
	t := suite.T()
	blank := rdfterm.NewBlank("b0")
	require.NoError(t, suite.backend.AddTriples(suite.ctx, append(sampleTriples(),
		rdfterm.Triple{Subject: blank, Predicate: knows, Object: alice})))
	suite.mock.ResetRequests()

	_, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.Pattern{Subject: blank}))
	require.True(t, IsKind(err, KindArgument))

	err = suite.backend.Remove(suite.ctx, rdfterm.Pattern{Subject: blank, Predicate: knows})
	require.True(t, IsKind(err, KindArgument))
	err = suite.backend.Remove(suite.ctx, rdfterm.Pattern{Object: blank})
	require.True(t, IsKind(err, KindArgument))

	// nothing reached the server and nothing was removed
	require.Empty(t, suite.mock.Requests())
	require.Len(t, suite.mock.StoredTriples(testDatabase), len(sampleTriples())+1)

	// blank subjects still come back from unbound patterns
	triples, err := CollectTriples(suite.backend.Triples(suite.ctx, rdfterm.Pattern{Object: alice}))
	require.NoError(t, err)
	require.Len(t, triples, 1)
	require.IsType(t, rdfterm.Blank(""), triples[0].Subject)
}

func (suite *BackendSuite) TestSerialize() {
	t := suite.T()
	require.NoError(t, suite.backend.AddTriples(suite.ctx, sampleTriples()))
	line := `<http://example.com/bob> <http://xmlns.com/foaf/0.1/name> "Bob" .`

	content, err := suite.backend.Serialize(suite.ctx, FormatTurtle, Destination{})
	require.NoError(t, err)
	require.Contains(t, content, line)

	var buf bytes.Buffer
	content, err = suite.backend.Serialize(suite.ctx, FormatTurtle, Destination{Writer: &buf})
	require.NoError(t, err)
	require.Empty(t, content)
	require.Contains(t, buf.String(), line)

	path := filepath.Join(t.TempDir(), "export.rdf")
	_, err = suite.backend.Serialize(suite.ctx, FormatRDFXML, Destination{Path: path})
	require.NoError(t, err)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(written), "rdf:RDF")

	suite.mock.ResetRequests()
	_, err = suite.backend.Serialize(suite.ctx, Format("json-ld"), Destination{})
	require.True(t, IsKind(err, KindUnsupportedFormat))
	_, err = suite.backend.Serialize(suite.ctx, FormatTurtle, Destination{Path: path, Writer: &buf})
	require.True(t, IsKind(err, KindArgument))
	require.Empty(t, suite.mock.Requests())
}

func (suite *BackendSuite) TestParseSources() {
	t := suite.T()
	turtle := "@prefix foaf: <http://xmlns.com/foaf/0.1/> .\n<http://example.com/bob> foaf:name \"Bob\" .\n"

	require.NoError(t, suite.backend.Parse(suite.ctx, ParseInput{Data: []byte(turtle)}, FormatTurtle))
	require.Equal(t, []rdfterm.Triple{sampleTriples()[3]}, suite.mock.StoredTriples(testDatabase))

	require.NoError(t, suite.backend.Parse(suite.ctx, ParseInput{
		Source: strings.NewReader("<http://example.com/alice> <http://xmlns.com/foaf/0.1/knows> <http://example.com/bob> ."),
	}, FormatTurtle))
	require.Len(t, suite.mock.StoredTriples(testDatabase), 2)

	path := filepath.Join(t.TempDir(), "people.ttl")
	require.NoError(t, os.WriteFile(path, []byte(`<http://example.com/alice> <http://xmlns.com/foaf/0.1/name> "Alice"@en .`), 0o644))
	require.NoError(t, suite.backend.Parse(suite.ctx, ParseInput{Location: path}, FormatTurtle))
	require.Len(t, suite.mock.StoredTriples(testDatabase), 3)
}

func (suite *BackendSuite) TestParseContract() {
	t := suite.T()
	data := []byte("<http://a> <http://b> <http://c> .")

	err := suite.backend.Parse(suite.ctx, ParseInput{}, FormatTurtle)
	require.True(t, IsKind(err, KindArgument))

	err = suite.backend.Parse(suite.ctx, ParseInput{Data: data, Source: bytes.NewReader(data)}, FormatTurtle)
	require.True(t, IsKind(err, KindArgument))

	err = suite.backend.Parse(suite.ctx, ParseInput{Data: data}, FormatRDFXML)
	require.True(t, IsKind(err, KindUnsupportedFormat))

	err = suite.backend.Parse(suite.ctx, ParseInput{Location: "ontology.owl"}, FormatTurtle)
	require.True(t, IsKind(err, KindUnsupportedFormat))

	err = suite.backend.Parse(suite.ctx, ParseInput{Location: filepath.Join(t.TempDir(), "missing.ttl")}, FormatTurtle)
	require.True(t, IsKind(err, KindArgument))

	require.Empty(t, suite.mock.Requests())
}

func (suite *BackendSuite) TestParseRollsBackOnBadContent() {
	t := suite.T()
	err := suite.backend.Parse(suite.ctx, ParseInput{Data: []byte("<http://a> <http://b> .")}, FormatTurtle)
	require.Error(t, err)
	require.Empty(t, suite.mock.StoredTriples(testDatabase))

	rolledBack := false
	for _, req := range suite.mock.Requests() {
		if strings.HasPrefix(req, "POST /test/transaction/rollback/") {
			rolledBack = true
		}
		require.False(t, strings.HasPrefix(req, "POST /test/transaction/commit/"))
	}
	require.True(t, rolledBack)
}

func (suite *BackendSuite) TestConcurrentParsesDoNotInterleave() {
	t := suite.T()
	suite.mock.SlowAdds(20 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data := fmt.Sprintf("<http://example.com/s%d> <http://example.com/p> \"%d\" .", i, i)
			errs <- suite.backend.Parse(suite.ctx, ParseInput{Data: []byte(data)}, FormatTurtle)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, suite.mock.StoredTriples(testDatabase), 5)
	require.Equal(t, 1, suite.mock.MaxOpenTransactions())
}

func (suite *BackendSuite) TestMissingDatabase() {
	t := suite.T()
	backend := NewBackend(suite.ctx, suite.mock.Connection(), "nope")
	defer backend.Close()
	require.False(t, backend.SessionOpen())

	_, err := CollectTriples(backend.Triples(suite.ctx, rdfterm.AnyTriple))
	require.True(t, IsKind(err, KindDatabaseNotFound))

	_, err = backend.Namespaces(suite.ctx)
	require.True(t, IsKind(err, KindDatabaseNotFound))
}

// Run the entire test suite
func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}

func TestDegradedSessionKeepsChannels(t *testing.T) {
	ctx := context.Background()
	mock := NewMockStardog()
	defer mock.Close()
	mock.AddDatabase(testDatabase)
	mock.Reject("/size", http.StatusServiceUnavailable)

	backend := NewBackend(ctx, mock.Connection(), testDatabase)
	defer backend.Close()
	require.False(t, backend.SessionOpen())

	require.NoError(t, backend.AddTriples(ctx, sampleTriples()))
	triples, err := CollectTriples(backend.Triples(ctx, rdfterm.AnyTriple))
	require.NoError(t, err)
	require.Len(t, triples, len(sampleTriples()))

	_, err = backend.Query(ctx, "SELECT ?s WHERE { ?s ?p ?o }", false)
	require.Error(t, err)

	// the session is opened again on the next session operation
	mock.Accept("/size")
	rows, err := backend.Query(ctx, "SELECT ?s WHERE { ?s <http://xmlns.com/foaf/0.1/knows> ?o }", false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, backend.SessionOpen())
}
