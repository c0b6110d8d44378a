// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package rdfterm

import (
	"strings"
)

const (
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	RDFLangStr = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// Term is a bound RDF term; a nil Term inside a Pattern is an unbound position
type Term interface {
	// N3 renders the term as it appears inside SPARQL statements and N-Triples
	N3() string
	// String returns the lexical content of the term without any N3 decoration
	String() string
}

// An absolute IRI, stored without angle brackets
type IRI string

func (i IRI) N3() string     { return "<" + string(i) + ">" }
func (i IRI) String() string { return string(i) }

// A blank node identifier, always stored with its "_:" prefix
type Blank string

// NewBlank normalizes an identifier so that it carries the "_:" prefix exactly once
func NewBlank(id string) Blank {
	if strings.HasPrefix(id, "_:") {
		return Blank(id)
	}
	return Blank("_:" + id)
}

func (b Blank) N3() string     { return string(b) }
func (b Blank) String() string { return string(b) }

// Literal is a string value with at most one of a language tag or a datatype IRI.
// Two literals are equal iff all three fields match, so == can be used directly.
type Literal struct {
	Value    string
	Language string
	Datatype string
}

func NewLiteral(value string) Literal {
	return Literal{Value: value}
}

func NewLangLiteral(value, lang string) Literal {
	return Literal{Value: value, Language: lang}
}

func NewTypedLiteral(value, datatype string) Literal {
	return Literal{Value: value, Datatype: datatype}
}

func (l Literal) N3() string {
	quoted := `"` + escapeLiteral(l.Value) + `"`
	switch {
	case l.Language != "":
		return quoted + "@" + l.Language
	case l.Datatype != "":
		return quoted + "^^<" + l.Datatype + ">"
	default:
		return quoted
	}
}

func (l Literal) String() string { return l.Value }

// A stored triple; every position is bound
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// N3 returns the three positions rendered as N3 strings
func (t Triple) N3() [3]string {
	return [3]string{t.Subject.N3(), t.Predicate.N3(), t.Object.N3()}
}

// Pattern is a triple used for matching; nil positions are unbound
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// AnyTriple matches every triple in a database
var AnyTriple = Pattern{}

// Position identifies one of the three slots of a triple
type Position int

const (
	Subject Position = iota
	Predicate
	Object
)

var positionNames = [...]string{"s", "p", "o"}

// Variable is the SPARQL variable name used when the position is unbound
func (p Position) Variable() string {
	return positionNames[p]
}

func (p Position) Name() string {
	return [...]string{"subject", "predicate", "object"}[p]
}

// Term returns the term held in the given position
func (p Pattern) Term(pos Position) Term {
	switch pos {
	case Subject:
		return p.Subject
	case Predicate:
		return p.Predicate
	default:
		return p.Object
	}
}

// Unbound lists the unbound positions in subject, predicate, object order
func (p Pattern) Unbound() []Position {
	var unbound []Position
	for _, pos := range []Position{Subject, Predicate, Object} {
		if p.Term(pos) == nil {
			unbound = append(unbound, pos)
		}
	}
	return unbound
}

// Bound reports whether the pattern has no unbound positions
func (p Pattern) Bound() bool {
	return len(p.Unbound()) == 0
}

// Triple converts a fully bound pattern into a stored triple
func (p Pattern) Triple() (Triple, bool) {
	if !p.Bound() {
		return Triple{}, false
	}
	return Triple{Subject: p.Subject, Predicate: p.Predicate, Object: p.Object}, true
}

func (t Triple) Pattern() Pattern {
	return Pattern{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
}
