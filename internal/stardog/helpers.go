// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"strings"

	"github.com/ontotrans/ontorec/internal/rdfterm"
)

// CheckPattern rejects blank nodes in bound positions;
// inside a where clause a blank node matches like a variable
func CheckPattern(pattern rdfterm.Pattern) error {
	for _, pos := range []rdfterm.Position{rdfterm.Subject, rdfterm.Predicate, rdfterm.Object} {
		if blank, ok := pattern.Term(pos).(rdfterm.Blank); ok {
			return newError(KindArgument, "blank node %s cannot be matched in the %s position; leave it unbound instead", blank, pos.Name())
		}
	}
	return nil
}

// the where clause body for a single pattern, e.g. `<s> ?p ?o .`
func patternClause(pattern rdfterm.Pattern) string {
	return rdfterm.Encode(pattern.Subject, rdfterm.Subject) + " " +
		rdfterm.Encode(pattern.Predicate, rdfterm.Predicate) + " " +
		rdfterm.Encode(pattern.Object, rdfterm.Object) + " ."
}

/*
Create a select query matching a pattern

Resulting queries will be in the form of:

	SELECT ?p ?o WHERE {
	  <s> ?p ?o .
	}

A fully bound pattern selects * since an empty projection is not valid sparql
*/
func selectQuery(pattern rdfterm.Pattern) string {
	var queryBuilder strings.Builder

	queryBuilder.WriteString("SELECT")
	unbound := pattern.Unbound()
	if len(unbound) == 0 {
		queryBuilder.WriteString(" *")
	}
	for _, pos := range unbound {
		queryBuilder.WriteString(" ?" + pos.Variable())
	}
	queryBuilder.WriteString(" WHERE {\n  ")
	queryBuilder.WriteString(patternClause(pattern))
	queryBuilder.WriteString("\n}")
	return queryBuilder.String()
}

/*
Create an insert statement with one line per triple

	INSERT DATA {
	  <s1> <p1> <o1> .
	  <s2> <p2> "o2"@en .
	}
*/
func insertDataStatement(triples []rdfterm.Triple) string {
	var queryBuilder strings.Builder

	queryBuilder.WriteString("INSERT DATA {\n")
	for _, triple := range triples {
		queryBuilder.WriteString("  ")
		queryBuilder.WriteString(patternClause(triple.Pattern()))
		queryBuilder.WriteString("\n")
	}
	queryBuilder.WriteString("}")
	return queryBuilder.String()
}

// Create a delete statement that filters on every bound term of the pattern.
// A fully bound pattern deletes exactly that triple.
func deleteWhereStatement(pattern rdfterm.Pattern) string {
	return "DELETE WHERE {\n  " + patternClause(pattern) + "\n}"
}
