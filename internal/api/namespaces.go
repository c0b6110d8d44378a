// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"

	"github.com/ontotrans/ontorec/internal/stardog"
)

// the prefix callers use for the base namespace, which stardog stores as ""
const basePrefix = "base"

type namespace struct {
	Prefix string `json:"prefix"`
	IRI    string `json:"iri"`
}

func publicPrefix(prefix string) string {
	if prefix == "" {
		return basePrefix
	}
	return prefix
}

func storedPrefix(prefix string) string {
	if prefix == basePrefix {
		return ""
	}
	return prefix
}

func (s *Server) namespaces(w http.ResponseWriter, r *http.Request) (stardog.TripleStore, map[string]string, bool) {
	name := r.PathValue("name")
	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return nil, nil, false
	}
	namespaces, err := store.Namespaces(r.Context())
	if err != nil {
		writeError(w, "reading namespaces of "+name, err)
		return nil, nil, false
	}
	return store, namespaces, true
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	_, bound, ok := s.namespaces(w, r)
	if !ok {
		return
	}
	result := make([]namespace, 0, len(bound))
	for prefix, iri := range bound {
		result = append(result, namespace{Prefix: prefix, IRI: iri})
	}
	slices.SortFunc(result, func(a, b namespace) int {
		return cmp.Compare(a.Prefix, b.Prefix)
	})
	writeJSON(w, http.StatusOK, map[string][]namespace{"namespaces": result})
}

func (s *Server) getBaseNamespace(w http.ResponseWriter, r *http.Request) {
	_, bound, ok := s.namespaces(w, r)
	if !ok {
		return
	}
	iri, found := bound[""]
	if !found {
		writeDetail(w, http.StatusNotFound, "Base namespace does not exist")
		return
	}
	writeJSON(w, http.StatusOK, namespace{Prefix: basePrefix, IRI: iri})
}

func (s *Server) getNamespace(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	_, bound, ok := s.namespaces(w, r)
	if !ok {
		return
	}
	iri, found := bound[prefix]
	if !found {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Namespace %s does not exist", prefix))
		return
	}
	writeJSON(w, http.StatusOK, namespace{Prefix: prefix, IRI: iri})
}

func (s *Server) addNamespace(w http.ResponseWriter, r *http.Request) {
	var body namespace
	if !decodeBody(w, r, &body) {
		return
	}
	if body.IRI == "" {
		writeDetail(w, http.StatusBadRequest, "iri is required")
		return
	}
	prefix := storedPrefix(body.Prefix)

	store, bound, ok := s.namespaces(w, r)
	if !ok {
		return
	}
	if existing, found := bound[prefix]; found && existing != body.IRI {
		writeDetail(w, http.StatusConflict, "Already existing namespace")
		return
	}
	if err := store.Bind(r.Context(), prefix, &body.IRI); err != nil {
		writeError(w, "binding "+publicPrefix(prefix), err)
		return
	}
	writeJSON(w, http.StatusCreated, namespace{Prefix: prefix, IRI: body.IRI})
}

func (s *Server) removeNamespace(w http.ResponseWriter, r *http.Request, prefix string) {
	store, bound, ok := s.namespaces(w, r)
	if !ok {
		return
	}
	if _, found := bound[prefix]; found {
		if err := store.Bind(r.Context(), prefix, nil); err != nil {
			writeError(w, "removing "+publicPrefix(prefix), err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBaseNamespace(w http.ResponseWriter, r *http.Request) {
	s.removeNamespace(w, r, "")
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	s.removeNamespace(w, r, r.PathValue("prefix"))
}
