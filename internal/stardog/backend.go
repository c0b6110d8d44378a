// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ontotrans/ontorec/internal/opentelemetry"
	"github.com/ontotrans/ontorec/internal/rdfterm"

	log "github.com/sirupsen/logrus"
)

// Format is an RDF serialization accepted by Serialize and Parse
type Format string

const (
	FormatTurtle Format = "turtle"
	FormatRDFXML Format = "rdf"
)

var exportMediaTypes = map[Format]string{
	FormatTurtle: "text/turtle",
	FormatRDFXML: "application/rdf+xml",
}

// Destination selects where Serialize writes.
// The zero value returns the content as a string.
type Destination struct {
	Path   string
	Writer io.Writer
}

// ParseInput holds the content to load; exactly one field must be set
type ParseInput struct {
	Source   io.Reader
	Location string
	// a non nil slice counts as supplied, even when empty
	Data []byte
}

// Backend maps generic triple operations onto one stardog database.
// Reads go through the query channel, writes through the update channel and
// everything transactional through the session.
type Backend struct {
	conn     Connection
	database string

	queryChannel  *sparqlChannel
	updateChannel *sparqlChannel

	channelMu sync.Mutex
	active    *sparqlChannel

	sessionMu sync.Mutex
	session   *session

	// held across the read and write of the namespace option
	nsMu sync.Mutex
}

// NewBackend builds both sparql channels and tries to open a session.
// A backend whose session could not be opened still serves Triples,
// AddTriples and Remove; session operations try to open it again.
func NewBackend(ctx context.Context, conn Connection, database string) *Backend {
	conn = conn.withClient()
	b := &Backend{
		conn:          conn,
		database:      database,
		queryChannel:  newChannel(conn, database, QueryChannel),
		updateChannel: newChannel(conn, database, UpdateChannel),
	}
	b.active = b.queryChannel

	if _, err := b.currentSession(ctx); err != nil {
		log.Warnf("could not open a session for database %s; only the sparql channels are usable: %v", database, err)
	}
	return b
}

func (b *Backend) Database() string {
	return b.database
}

// ActiveChannel reports which sparql channel the backend last switched to
func (b *Backend) ActiveChannel() ChannelKind {
	b.channelMu.Lock()
	defer b.channelMu.Unlock()
	return b.active.kind
}

func (b *Backend) switchTo(kind ChannelKind) *sparqlChannel {
	b.channelMu.Lock()
	defer b.channelMu.Unlock()
	if kind == UpdateChannel {
		b.active = b.updateChannel
	} else {
		b.active = b.queryChannel
	}
	return b.active
}

// SessionOpen reports whether the stateful session is currently available
func (b *Backend) SessionOpen() bool {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	return b.session != nil
}

func (b *Backend) currentSession(ctx context.Context) (*session, error) {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	if b.session != nil {
		return b.session, nil
	}
	s, err := openSession(ctx, b.conn, b.database)
	if err != nil {
		return nil, err
	}
	b.session = s
	return s, nil
}

// Triples lazily yields every triple matching the pattern.
// Ranging over the sequence again issues a new query.
func (b *Backend) Triples(ctx context.Context, pattern rdfterm.Pattern) iter.Seq2[rdfterm.Triple, error] {
	return func(yield func(rdfterm.Triple, error) bool) {
		span, ctx := opentelemetry.SubSpanFromCtx(ctx)
		defer span.End()
		span.SetAttributes(opentelemetry.DatabaseAttribute(b.database))

		if err := CheckPattern(pattern); err != nil {
			yield(rdfterm.Triple{}, err)
			return
		}
		results, err := b.switchTo(QueryChannel).selectRows(ctx, selectQuery(pattern))
		if err != nil {
			yield(rdfterm.Triple{}, err)
			return
		}
		for _, row := range results.Rows {
			triple, err := tripleFromRow(pattern, row)
			if err != nil {
				yield(rdfterm.Triple{}, err)
				return
			}
			if !yield(triple, nil) {
				return
			}
		}
	}
}

// bound positions are echoed back; only variables are decoded
func tripleFromRow(pattern rdfterm.Pattern, row map[string]rdfterm.Binding) (rdfterm.Triple, error) {
	var terms [3]rdfterm.Term
	for _, pos := range []rdfterm.Position{rdfterm.Subject, rdfterm.Predicate, rdfterm.Object} {
		if bound := pattern.Term(pos); bound != nil {
			terms[pos] = bound
			continue
		}
		binding, ok := row[pos.Variable()]
		if !ok {
			return rdfterm.Triple{}, newError(KindDecode, "result row has no value for ?%s", pos.Variable())
		}
		term, err := rdfterm.DecodeBinding(binding)
		if err != nil {
			return rdfterm.Triple{}, wrapError(err, KindDecode, "could not decode ?%s", pos.Variable())
		}
		terms[pos] = term
	}
	return rdfterm.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]}, nil
}

// CollectTriples drains a triple sequence, stopping at the first error
func CollectTriples(seq iter.Seq2[rdfterm.Triple, error]) ([]rdfterm.Triple, error) {
	var triples []rdfterm.Triple
	for triple, err := range seq {
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

// AddTriples inserts every triple with a single INSERT DATA statement
func (b *Backend) AddTriples(ctx context.Context, triples []rdfterm.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	for i, triple := range triples {
		if triple.Subject == nil || triple.Predicate == nil || triple.Object == nil {
			return newError(KindArgument, "triple %d has an unbound position", i)
		}
	}
	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()
	span.SetAttributes(opentelemetry.DatabaseAttribute(b.database))

	log.Debugf("inserting %d triples into %s", len(triples), b.database)
	return b.switchTo(UpdateChannel).update(ctx, insertDataStatement(triples))
}

// Remove deletes every triple matching the pattern; no match is not an error
func (b *Backend) Remove(ctx context.Context, pattern rdfterm.Pattern) error {
	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()
	span.SetAttributes(opentelemetry.DatabaseAttribute(b.database))

	if err := CheckPattern(pattern); err != nil {
		return err
	}
	return b.switchTo(UpdateChannel).update(ctx, deleteWhereStatement(pattern))
}

// Query runs arbitrary sparql on the session. Each row holds the decoded terms in
// the order of the declared variables; a variable without a binding is nil.
func (b *Backend) Query(ctx context.Context, sparql string, reasoning bool) ([][]rdfterm.Term, error) {
	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()
	span.SetAttributes(opentelemetry.DatabaseAttribute(b.database))

	s, err := b.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.selectQuery(ctx, sparql, reasoning)
	if err != nil {
		return nil, err
	}
	rows := make([][]rdfterm.Term, 0, len(results.Rows))
	for _, row := range results.Rows {
		terms := make([]rdfterm.Term, len(results.Vars))
		for i, variable := range results.Vars {
			binding, ok := row[variable]
			if !ok {
				continue
			}
			term, err := rdfterm.DecodeBinding(binding)
			if err != nil {
				return nil, wrapError(err, KindDecode, "could not decode ?%s", variable)
			}
			terms[i] = term
		}
		rows = append(rows, terms)
	}
	return rows, nil
}

// Namespaces maps every prefix of the database to its IRI; "" is the base namespace
func (b *Backend) Namespaces(ctx context.Context) (map[string]string, error) {
	s, err := b.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.namespaces(ctx)
}

// Bind adds a prefix, or removes it when iri is nil.
// Binding a prefix that already maps to another IRI is a conflict.
func (b *Backend) Bind(ctx context.Context, prefix string, iri *string) error {
	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()

	s, err := b.currentSession(ctx)
	if err != nil {
		return err
	}
	b.nsMu.Lock()
	defer b.nsMu.Unlock()
	entries, err := s.namespaceEntries(ctx)
	if err != nil {
		return err
	}

	index := -1
	existing := ""
	for i, entry := range entries {
		entryPrefix, entryIRI, _ := strings.Cut(entry, "=")
		if entryPrefix == prefix {
			index, existing = i, entryIRI
			break
		}
	}

	if iri == nil {
		if index < 0 {
			log.Debugf("prefix %q is not bound in %s; nothing to remove", prefix, b.database)
			return nil
		}
		entries = append(entries[:index], entries[index+1:]...)
		return s.setNamespaceEntries(ctx, entries)
	}

	if index >= 0 {
		if existing == *iri {
			return nil
		}
		return newError(KindConflict, "prefix %q is already bound to %s in %s", prefix, existing, b.database)
	}
	return s.setNamespaceEntries(ctx, append(entries, prefix+"="+*iri))
}

// Serialize exports the whole database.
// Only turtle and rdf/xml are supported.
func (b *Backend) Serialize(ctx context.Context, format Format, dest Destination) (string, error) {
	mediaType, ok := exportMediaTypes[format]
	if !ok {
		log.Warnf("refusing to serialize %s as %q", b.database, format)
		return "", newError(KindUnsupportedFormat, "%s format not supported", format)
	}
	if dest.Path != "" && dest.Writer != nil {
		return "", newError(KindArgument, "serialize accepts either a path or a writer, not both")
	}

	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()

	s, err := b.currentSession(ctx)
	if err != nil {
		return "", err
	}
	content, err := s.export(ctx, mediaType)
	if err != nil {
		return "", err
	}

	switch {
	case dest.Path != "":
		if err := os.WriteFile(dest.Path, content, 0o644); err != nil {
			return "", wrapError(err, KindInternal, "failed to write export of %s to %s", b.database, dest.Path)
		}
		return "", nil
	case dest.Writer != nil:
		if _, err := dest.Writer.Write(content); err != nil {
			return "", wrapError(err, KindInternal, "failed to write export of %s", b.database)
		}
		return "", nil
	default:
		return string(content), nil
	}
}

// Parse loads turtle content inside a single transaction
func (b *Backend) Parse(ctx context.Context, input ParseInput, format Format) error {
	supplied := 0
	if input.Source != nil {
		supplied++
	}
	if input.Location != "" {
		supplied++
	}
	if input.Data != nil {
		supplied++
	}
	if supplied != 1 {
		return newError(KindArgument, "exactly one of source, location or data must be supplied, got %d", supplied)
	}
	if format != FormatTurtle {
		return newError(KindUnsupportedFormat, "%s format not supported for loading", format)
	}

	var content io.Reader
	switch {
	case input.Location != "":
		if !strings.EqualFold(filepath.Ext(input.Location), ".ttl") {
			return newError(KindUnsupportedFormat, "%s does not have a .ttl extension", input.Location)
		}
		f, err := os.Open(input.Location)
		if err != nil {
			return wrapError(err, KindArgument, "could not open %s", input.Location)
		}
		defer f.Close()
		content = f
	case input.Source != nil:
		content = input.Source
	default:
		content = strings.NewReader(string(input.Data))
	}

	span, ctx := opentelemetry.SubSpanFromCtx(ctx)
	defer span.End()
	span.SetAttributes(opentelemetry.DatabaseAttribute(b.database))

	s, err := b.currentSession(ctx)
	if err != nil {
		return err
	}
	return s.load(ctx, content, exportMediaTypes[FormatTurtle])
}

// Close drops the session and releases idle connections
func (b *Backend) Close() error {
	b.sessionMu.Lock()
	b.session = nil
	b.sessionMu.Unlock()
	b.conn.Client.CloseIdleConnections()
	return nil
}
