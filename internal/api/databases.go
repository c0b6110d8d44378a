// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ontotrans/ontorec/internal/opentelemetry"
	"github.com/ontotrans/ontorec/internal/rdfterm"
	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
)

// uploads larger than this are rejected before reaching the store
const maxUploadBytes = 64 << 20

type genericResponse struct {
	Response string `json:"response"`
}

type queryRequest struct {
	Query     string `json:"query"`
	Reasoning bool   `json:"reasoning"`
}

// a position left null is unbound
type tripleRequest struct {
	S *string `json:"s"`
	P *string `json:"p"`
	O *string `json:"o"`
}

type triplesRequest struct {
	Triples []tripleRequest `json:"triples"`
}

func (t tripleRequest) pattern() (rdfterm.Pattern, error) {
	var pattern rdfterm.Pattern
	targets := []struct {
		raw  *string
		dest *rdfterm.Term
	}{
		{t.S, &pattern.Subject},
		{t.P, &pattern.Predicate},
		{t.O, &pattern.Object},
	}
	for _, target := range targets {
		if target.raw == nil {
			continue
		}
		term, err := rdfterm.ParseTerm(*target.raw)
		if err != nil {
			return rdfterm.Pattern{}, err
		}
		*target.dest = term
	}
	return pattern, nil
}

// decodeBody reads a json request body, answering 400 itself when it is not valid
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request) {
	databases, err := s.admin.ListDatabases(r.Context())
	if err != nil {
		writeError(w, "listing databases", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dbs": databases})
}

func (s *Server) getTriples(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	triples := [][3]string{}
	for triple, err := range store.Triples(r.Context(), rdfterm.AnyTriple) {
		if err != nil {
			writeError(w, "reading triples of "+name, err)
			return
		}
		triples = append(triples, triple.N3())
	}
	writeJSON(w, http.StatusOK, map[string][][3]string{"triples": triples})
}

func (s *Server) serialize(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	format := stardog.FormatTurtle
	if requested := r.URL.Query().Get("format"); requested != "" {
		format = stardog.Format(requested)
	}
	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	content, err := store.Serialize(r.Context(), format, stardog.Destination{})
	if stardog.IsKind(err, stardog.KindUnsupportedFormat) {
		writeDetail(w, http.StatusNotAcceptable, fmt.Sprintf("%s format not supported", format))
		return
	}
	if err != nil {
		writeError(w, "serializing "+name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body queryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	rows, err := store.Query(r.Context(), body.Query, body.Reasoning)
	if err != nil {
		writeError(w, "querying "+name, err)
		return
	}
	result := make([][]*string, len(rows))
	for i, row := range rows {
		cells := make([]*string, len(row))
		for j, term := range row {
			if term != nil {
				n3 := term.N3()
				cells[j] = &n3
			}
		}
		result[i] = cells
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) createDatabase(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := r.Context()
	span, ctx := opentelemetry.SubSpanFromCtxWithName(ctx, "create_database")
	defer span.End()

	initEmmo := true
	if raw := r.URL.Query().Get("initEmmo"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("initEmmo must be a boolean, got %q", raw))
			return
		}
		initEmmo = parsed
	}

	created, err := s.admin.CreateDatabase(ctx, name)
	if err != nil {
		writeError(w, "creating "+name, err)
		return
	}
	if !created {
		writeDetail(w, http.StatusConflict, fmt.Sprintf("Database %s already exists", name))
		return
	}
	// a backend cached before the database existed may hold a stale session
	s.registry.Invalidate(name)

	if initEmmo {
		store, err := s.store(ctx, name)
		if err != nil {
			writeError(w, "opening "+name, err)
			return
		}
		seed := s.config.SeedOntologyPath()
		if err := store.Parse(ctx, stardog.ParseInput{Location: seed}, stardog.FormatTurtle); err != nil {
			writeError(w, "seeding "+name+" from "+seed, err)
			return
		}
		log.Infof("seeded %s from %s", name, seed)
	}
	writeJSON(w, http.StatusCreated, genericResponse{Response: "Database created"})
}

func (s *Server) uploadOntology(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("ontology")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("an ontology file is required: %v", err))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".ttl") {
		writeDetail(w, http.StatusBadRequest, "Format not supported, please upload a turtle (.ttl) file")
		return
	}

	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	if err := store.Parse(r.Context(), stardog.ParseInput{Source: file}, stardog.FormatTurtle); err != nil {
		writeError(w, "loading "+header.Filename+" into "+name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": header.Filename})
}

func (s *Server) addTriples(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body triplesRequest
	if !decodeBody(w, r, &body) {
		return
	}
	triples := make([]rdfterm.Triple, 0, len(body.Triples))
	for i, entry := range body.Triples {
		pattern, err := entry.pattern()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Triple bad formatted: triple %d: %v", i, err))
			return
		}
		triple, ok := pattern.Triple()
		if !ok {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Triple bad formatted: triple %d has an unbound position", i))
			return
		}
		triples = append(triples, triple)
	}

	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	if err := store.AddTriples(r.Context(), triples); err != nil {
		writeError(w, "adding triples to "+name, err)
		return
	}
	writeJSON(w, http.StatusOK, genericResponse{Response: "Triples added successfully"})
}

func (s *Server) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.admin.RemoveDatabase(r.Context(), name); err != nil {
		writeError(w, "deleting "+name, err)
		return
	}
	s.registry.Invalidate(name)
	writeJSON(w, http.StatusOK, genericResponse{Response: "Database deleted"})
}

func (s *Server) deleteTriples(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body triplesRequest
	if !decodeBody(w, r, &body) {
		return
	}
	patterns := make([]rdfterm.Pattern, 0, len(body.Triples))
	for i, entry := range body.Triples {
		pattern, err := entry.pattern()
		if err == nil {
			err = stardog.CheckPattern(pattern)
		}
		if err != nil {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Triple bad formatted: triple %d: %v", i, err))
			return
		}
		patterns = append(patterns, pattern)
	}

	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return
	}
	var errs []error
	for _, pattern := range patterns {
		if err := store.Remove(r.Context(), pattern); err != nil {
			errs = append(errs, err)
			// an unreachable store fails every following pattern the same way
			if stardog.IsKind(err, stardog.KindUnreachable) {
				break
			}
		}
	}
	if len(errs) > 0 {
		writeError(w, "deleting triples from "+name, errs[0])
		if len(errs) > 1 {
			log.Errorf("%d patterns could not be removed from %s: %v", len(errs), name, errors.Join(errs...))
		}
		return
	}
	writeJSON(w, http.StatusOK, genericResponse{Response: "Triples deleted successfully"})
}
