// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/piprate/json-gold/ld"
	log "github.com/sirupsen/logrus"
)

// newJsonldProcessor builds the JSON-LD processor and the options used to expand
// records. Records carry their context inline so no document loader is needed.
func newJsonldProcessor() (*ld.JsonLdProcessor, *ld.JsonLdOptions) {
	processor := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.ProcessingMode = ld.JsonLd_1_1
	options.Format = "application/nquads"
	return processor, options
}

// jsonldToTriples expands a JSON-LD document into the triples of its default and named graphs
func jsonldToTriples(doc map[string]any) ([]rdfterm.Triple, error) {
	// round trip through encoding/json so json-gold only ever sees the generic types it expects
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("could not encode record as JSON-LD: %w", err)
	}
	var deserializeInterface any
	if err := json.Unmarshal(raw, &deserializeInterface); err != nil {
		log.Error("Error when transforming JSON-LD document to interface:", err)
		return nil, err
	}

	processor, options := newJsonldProcessor()
	nquads, err := processor.ToRDF(deserializeInterface, options)
	if err != nil {
		log.Error("Error when transforming JSON-LD document to RDF:", err)
		return nil, err
	}
	serialized, ok := nquads.(string)
	if !ok {
		return nil, fmt.Errorf("JSON-LD processor returned %T instead of n-quads", nquads)
	}
	return rdfterm.DecodeNQuads(strings.NewReader(serialized))
}
