// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/tidwall/gjson"
)

const sparqlResultsJSON = "application/sparql-results+json"

const xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"

// A parsed application/sparql-results+json document
type resultSet struct {
	Vars []string
	Rows []map[string]rdfterm.Binding
}

func parseResults(body []byte) (resultSet, error) {
	if !gjson.ValidBytes(body) {
		return resultSet{}, newError(KindInternal, "stardog returned a result document that is not valid json")
	}
	parsed := gjson.ParseBytes(body)

	// ASK queries answer with a single boolean instead of bindings
	if boolean := parsed.Get("boolean"); boolean.Exists() {
		value := "false"
		if boolean.Bool() {
			value = "true"
		}
		return resultSet{
			Vars: []string{"boolean"},
			Rows: []map[string]rdfterm.Binding{{
				"boolean": {Type: "literal", Value: value, Datatype: xsdBoolean},
			}},
		}, nil
	}

	var results resultSet
	for _, v := range parsed.Get("head.vars").Array() {
		results.Vars = append(results.Vars, v.String())
	}
	parsed.Get("results.bindings").ForEach(func(_, row gjson.Result) bool {
		cells := make(map[string]rdfterm.Binding)
		row.ForEach(func(name, cell gjson.Result) bool {
			fields := cell.Map()
			cells[name.String()] = rdfterm.Binding{
				Type:     fields["type"].String(),
				Value:    fields["value"].String(),
				Language: fields["xml:lang"].String(),
				Datatype: fields["datatype"].String(),
			}
			return true
		})
		results.Rows = append(results.Rows, cells)
		return true
	})
	return results, nil
}
