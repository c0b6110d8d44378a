// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ontotrans/ontorec/internal/rdfterm"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// namespaces every new database starts with, mirroring a fresh stardog install
var defaultMockNamespaces = []string{
	"=http://api.stardog.com/",
	"rdf=http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs=http://www.w3.org/2000/01/rdf-schema#",
	"xsd=http://www.w3.org/2001/XMLSchema#",
	"owl=http://www.w3.org/2002/07/owl#",
}

// MockStardog is an in memory stand in for the parts of the stardog http api
// the backend and admin client use. It understands the small sparql subset
// those clients generate plus basic graph patterns.
type MockStardog struct {
	Server *httptest.Server

	mu        sync.Mutex
	databases map[string]*mockDatabase
	requests  []string
	rejects   map[string]int
	addDelay  time.Duration
	openTx    int
	maxOpenTx int
}

type mockDatabase struct {
	triples    map[string]rdfterm.Triple
	namespaces []string
	pending    map[string][]rdfterm.Triple
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{
		triples:    make(map[string]rdfterm.Triple),
		namespaces: slices.Clone(defaultMockNamespaces),
		pending:    make(map[string][]rdfterm.Triple),
	}
}

func tripleKey(t rdfterm.Triple) string {
	n3 := t.N3()
	return strings.Join(n3[:], " ")
}

// sorted so responses are deterministic
func (db *mockDatabase) sortedTriples() []rdfterm.Triple {
	keys := make([]string, 0, len(db.triples))
	for key := range db.triples {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	triples := make([]rdfterm.Triple, 0, len(keys))
	for _, key := range keys {
		triples = append(triples, db.triples[key])
	}
	return triples
}

// NewMockStardog starts the double; Close must be called when done
func NewMockStardog() *MockStardog {
	m := &MockStardog{
		databases: make(map[string]*mockDatabase),
		rejects:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/alive", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /admin/databases", m.handleListDatabases)
	mux.HandleFunc("POST /admin/databases", m.handleCreateDatabase)
	mux.HandleFunc("DELETE /admin/databases/{db}", m.handleDropDatabase)
	mux.HandleFunc("PUT /admin/databases/{db}/options", m.handleGetOptions)
	mux.HandleFunc("POST /admin/databases/{db}/options", m.handleSetOptions)
	mux.HandleFunc("GET /{db}/size", m.handleSize)
	mux.HandleFunc("GET /{db}/namespaces", m.handleNamespaces)
	mux.HandleFunc("GET /{db}/query", m.handleChannelQuery)
	mux.HandleFunc("POST /{db}/query", m.handleSessionQuery)
	mux.HandleFunc("POST /{db}/update", m.handleUpdate)
	mux.HandleFunc("POST /{db}/transaction/begin", m.handleBegin)
	mux.HandleFunc("POST /{db}/{tx}/add", m.handleAdd)
	mux.HandleFunc("POST /{db}/transaction/commit/{tx}", m.handleCommit)
	mux.HandleFunc("POST /{db}/transaction/rollback/{tx}", m.handleRollback)
	mux.HandleFunc("GET /{db}/export", m.handleExport)

	m.Server = httptest.NewServer(m.record(mux))
	return m
}

func (m *MockStardog) Close() {
	m.Server.Close()
}

// Connection returns a connection pointed at the double
func (m *MockStardog) Connection() Connection {
	return Connection{
		Endpoint: m.Server.URL,
		Username: "admin",
		Password: "admin",
		Client:   m.Server.Client(),
	}
}

// record logs every request and applies any configured rejections
func (m *MockStardog) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		status := 0
		for suffix, rejectStatus := range m.rejects {
			if strings.HasSuffix(r.URL.Path, suffix) {
				status = rejectStatus
			}
		}
		m.mu.Unlock()
		if status != 0 {
			writeMockError(w, status, "", "request rejected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reject makes every request whose path ends with suffix fail with status
func (m *MockStardog) Reject(suffix string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[suffix] = status
}

// Accept undoes Reject
func (m *MockStardog) Accept(suffix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rejects, suffix)
}

// SlowAdds delays every transactional add so overlapping transactions become visible
func (m *MockStardog) SlowAdds(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDelay = delay
}

// Requests returns "METHOD /path" for every request received so far
func (m *MockStardog) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

func (m *MockStardog) ResetRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// MaxOpenTransactions is the highest number of transactions that were open at once
func (m *MockStardog) MaxOpenTransactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOpenTx
}

// AddDatabase creates a database directly, bypassing the http api
func (m *MockStardog) AddDatabase(name string, triples ...rdfterm.Triple) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.databases[name]
	if !ok {
		db = newMockDatabase()
		m.databases[name] = db
	}
	for _, triple := range triples {
		db.triples[tripleKey(triple)] = triple
	}
}

// StoredTriples returns the committed content of a database in a stable order
func (m *MockStardog) StoredTriples(name string) []rdfterm.Triple {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.databases[name]
	if !ok {
		return nil
	}
	return db.sortedTriples()
}

func writeMockError(w http.ResponseWriter, status int, code, message string) {
	if code != "" {
		w.Header().Set("SD-Error-Code", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message, "code": code})
}

func writeMockJSON(w http.ResponseWriter, contentType string, body any) {
	w.Header().Set("Content-Type", contentType)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("mock stardog failed to encode response: %v", err)
	}
}

// lookup returns the named database or writes the stardog not found error.
// The caller must hold m.mu.
func (m *MockStardog) lookup(w http.ResponseWriter, r *http.Request) (*mockDatabase, bool) {
	name := r.PathValue("db")
	db, ok := m.databases[name]
	if !ok {
		writeMockError(w, http.StatusNotFound, CodeDatabaseMissing, fmt.Sprintf("Database '%s' does not exist.", name))
	}
	return db, ok
}

func (m *MockStardog) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	names := make([]string, 0, len(m.databases))
	for name := range m.databases {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)
	writeMockJSON(w, "application/json", map[string]any{"databases": names})
}

func (m *MockStardog) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeMockError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	name := gjson.Get(r.FormValue("root"), "dbname").String()
	if name == "" {
		writeMockError(w, http.StatusBadRequest, "", "missing dbname")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.databases[name]; ok {
		writeMockError(w, http.StatusConflict, CodeDatabaseExists, fmt.Sprintf("Database '%s' already exists.", name))
		return
	}
	m.databases[name] = newMockDatabase()
	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, `{"message":"Successfully created database '`+name+`'."}`)
}

func (m *MockStardog) handleDropDatabase(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(w, r); !ok {
		return
	}
	delete(m.databases, r.PathValue("db"))
	w.WriteHeader(http.StatusOK)
}

func (m *MockStardog) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	writeMockJSON(w, "application/json", map[string]any{namespacesOption: slices.Clone(db.namespaces)})
}

func (m *MockStardog) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMockError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	option := gjson.GetBytes(body, `database\.namespaces`)
	if !option.IsArray() {
		writeMockError(w, http.StatusBadRequest, "", "database.namespaces must be an array")
		return
	}
	entries := []string{}
	for _, entry := range option.Array() {
		if !strings.Contains(entry.String(), "=") {
			writeMockError(w, http.StatusBadRequest, "", "invalid namespace entry "+entry.String())
			return
		}
		entries = append(entries, entry.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	db.namespaces = entries
	w.WriteHeader(http.StatusOK)
}

func (m *MockStardog) handleSize(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	_, _ = fmt.Fprintf(w, "%d", len(db.triples))
}

func (m *MockStardog) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	namespaces := []map[string]string{}
	for _, entry := range db.namespaces {
		prefix, iri, _ := strings.Cut(entry, "=")
		namespaces = append(namespaces, map[string]string{"prefix": prefix, "name": iri})
	}
	writeMockJSON(w, "application/json", map[string]any{"namespaces": namespaces})
}

func (m *MockStardog) handleChannelQuery(w http.ResponseWriter, r *http.Request) {
	m.answerQuery(w, r, r.URL.Query().Get("query"))
}

func (m *MockStardog) handleSessionQuery(w http.ResponseWriter, r *http.Request) {
	m.answerQuery(w, r, r.PostFormValue("query"))
}

func (m *MockStardog) answerQuery(w http.ResponseWriter, r *http.Request, query string) {
	parsed, err := parseMockSparql(query)
	if err == nil && parsed.form != formSelect && parsed.form != formAsk {
		err = fmt.Errorf("%s is not a query", parsed.form)
	}
	if err != nil {
		writeMockError(w, http.StatusBadRequest, CodeQueryParse, err.Error())
		return
	}

	m.mu.Lock()
	db, ok := m.lookup(w, r)
	if !ok {
		m.mu.Unlock()
		return
	}
	solutions := evaluate(db, parsed.patterns)
	m.mu.Unlock()

	if parsed.form == formAsk {
		writeMockJSON(w, sparqlResultsJSON, map[string]any{"head": map[string]any{}, "boolean": len(solutions) > 0})
		return
	}

	vars := parsed.projection
	if vars == nil {
		vars = parsed.variables()
	}
	bindings := []map[string]map[string]string{}
	for _, solution := range solutions {
		row := make(map[string]map[string]string)
		for _, variable := range vars {
			term, ok := solution[variable]
			if !ok {
				continue
			}
			row[variable] = bindingJSON(rdfterm.EncodeBinding(term))
		}
		bindings = append(bindings, row)
	}
	writeMockJSON(w, sparqlResultsJSON, map[string]any{
		"head":    map[string]any{"vars": vars},
		"results": map[string]any{"bindings": bindings},
	})
}

func bindingJSON(b rdfterm.Binding) map[string]string {
	cell := map[string]string{"type": b.Type, "value": b.Value}
	if b.Language != "" {
		cell["xml:lang"] = b.Language
	}
	if b.Datatype != "" {
		cell["datatype"] = b.Datatype
	}
	return cell
}

func (m *MockStardog) handleUpdate(w http.ResponseWriter, r *http.Request) {
	parsed, err := parseMockSparql(r.PostFormValue("update"))
	if err == nil && parsed.form != formInsertData && parsed.form != formDeleteWhere {
		err = fmt.Errorf("%s is not an update", parsed.form)
	}
	if err != nil {
		writeMockError(w, http.StatusBadRequest, CodeQueryParse, err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}

	if parsed.form == formInsertData {
		for _, pattern := range parsed.patterns {
			triple, _ := pattern.triple(nil)
			db.triples[tripleKey(triple)] = triple
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, solution := range evaluate(db, parsed.patterns) {
		for _, pattern := range parsed.patterns {
			if triple, ok := pattern.triple(solution); ok {
				delete(db.triples, tripleKey(triple))
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (m *MockStardog) handleBegin(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	tx := uuid.New().String()
	db.pending[tx] = nil
	m.openTx++
	m.maxOpenTx = max(m.maxOpenTx, m.openTx)
	_, _ = io.WriteString(w, tx)
}

func (m *MockStardog) handleAdd(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMockError(w, http.StatusBadRequest, "", err.Error())
		return
	}

	m.mu.Lock()
	delay := m.addDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	triples, parseErr := rdfterm.DecodeTurtle(bytes.NewReader(body))

	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	tx := r.PathValue("tx")
	if _, open := db.pending[tx]; !open {
		writeMockError(w, http.StatusNotFound, "", "unknown transaction "+tx)
		return
	}
	if parseErr != nil {
		writeMockError(w, http.StatusBadRequest, "", parseErr.Error())
		return
	}
	db.pending[tx] = append(db.pending[tx], triples...)
	w.WriteHeader(http.StatusOK)
}

func (m *MockStardog) handleCommit(w http.ResponseWriter, r *http.Request) {
	m.finishTransaction(w, r, true)
}

func (m *MockStardog) handleRollback(w http.ResponseWriter, r *http.Request) {
	m.finishTransaction(w, r, false)
}

func (m *MockStardog) finishTransaction(w http.ResponseWriter, r *http.Request, commit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.lookup(w, r)
	if !ok {
		return
	}
	tx := r.PathValue("tx")
	triples, open := db.pending[tx]
	if !open {
		writeMockError(w, http.StatusNotFound, "", "unknown transaction "+tx)
		return
	}
	delete(db.pending, tx)
	m.openTx--
	if commit {
		for _, triple := range triples {
			db.triples[tripleKey(triple)] = triple
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (m *MockStardog) handleExport(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	db, ok := m.lookup(w, r)
	if !ok {
		m.mu.Unlock()
		return
	}
	triples := db.sortedTriples()
	m.mu.Unlock()

	switch r.Header.Get("Accept") {
	case "text/turtle":
		w.Header().Set("Content-Type", "text/turtle")
		// n-triples is a subset of turtle
		for _, triple := range triples {
			_, _ = io.WriteString(w, tripleKey(triple)+" .\n")
		}
	case "application/rdf+xml":
		w.Header().Set("Content-Type", "application/rdf+xml")
		_, _ = io.WriteString(w, rdfXML(triples))
	default:
		writeMockError(w, http.StatusNotAcceptable, "", "unsupported export format")
	}
}

// a minimal rdf/xml document, one description per triple
func rdfXML(triples []rdfterm.Triple) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	for _, triple := range triples {
		about := `rdf:about="` + xmlEscape(triple.Subject.String()) + `"`
		if _, blank := triple.Subject.(rdfterm.Blank); blank {
			about = `rdf:nodeID="` + strings.TrimPrefix(triple.Subject.String(), "_:") + `"`
		}
		predicate := triple.Predicate.String()
		cut := strings.LastIndexAny(predicate, "#/") + 1
		namespace, local := predicate[:cut], predicate[cut:]

		sb.WriteString("  <rdf:Description " + about + ">\n")
		sb.WriteString(`    <p:` + local + ` xmlns:p="` + xmlEscape(namespace) + `"`)
		switch object := triple.Object.(type) {
		case rdfterm.IRI:
			sb.WriteString(` rdf:resource="` + xmlEscape(string(object)) + `"/>` + "\n")
		case rdfterm.Blank:
			sb.WriteString(` rdf:nodeID="` + strings.TrimPrefix(string(object), "_:") + `"/>` + "\n")
		case rdfterm.Literal:
			if object.Language != "" {
				sb.WriteString(` xml:lang="` + object.Language + `"`)
			} else if object.Datatype != "" {
				sb.WriteString(` rdf:datatype="` + xmlEscape(object.Datatype) + `"`)
			}
			sb.WriteString(">" + xmlEscape(object.Value) + "</p:" + local + ">\n")
		}
		sb.WriteString("  </rdf:Description>\n")
	}
	sb.WriteString("</rdf:RDF>\n")
	return sb.String()
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
