// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package rdfterm

import (
	"fmt"
	"io"
	"strings"

	"github.com/knakk/rdf"
	log "github.com/sirupsen/logrus"
)

// FromRDF converts a decoded knakk/rdf term.
// The decoder types every plain string as xsd:string; that datatype is dropped
// so plain literals compare equal no matter which parser produced them.
func FromRDF(term rdf.Term) (Term, error) {
	switch v := term.(type) {
	case rdf.IRI:
		return IRI(v.String()), nil
	case rdf.Blank:
		return NewBlank(v.String()), nil
	case rdf.Literal:
		lit := Literal{Value: v.String(), Language: v.Lang()}
		if lit.Language == "" {
			if datatype := v.DataType.String(); datatype != XSDString {
				lit.Datatype = datatype
			}
		}
		return lit, nil
	default:
		return nil, &DecodeError{Type: fmt.Sprintf("%T", term)}
	}
}

// a lone term is read as the object of this statement;
// the object position accepts every kind of term
const termStatement = "<urn:ontorec:subject> <urn:ontorec:predicate> %s .\n"

// decodeTerm reads a single N-Triples term
func decodeTerm(n3 string) (Term, error) {
	dec := rdf.NewTripleDecoder(strings.NewReader(fmt.Sprintf(termStatement, n3)), rdf.NTriples)
	triple, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrMalformedTerm, n3, err)
	}
	return FromRDF(triple.Obj)
}

// TripleFromRDF converts a knakk/rdf triple
func TripleFromRDF(t rdf.Triple) (Triple, error) {
	s, err := FromRDF(t.Subj)
	if err != nil {
		return Triple{}, err
	}
	p, err := FromRDF(t.Pred)
	if err != nil {
		return Triple{}, err
	}
	o, err := FromRDF(t.Obj)
	if err != nil {
		return Triple{}, err
	}
	return Triple{Subject: s, Predicate: p, Object: o}, nil
}

// DecodeTurtle reads every triple out of a turtle document
func DecodeTurtle(r io.Reader) ([]Triple, error) {
	return decodeTriples(r, rdf.Turtle)
}

// DecodeNTriples reads every triple out of an N-Triples document
func DecodeNTriples(r io.Reader) ([]Triple, error) {
	return decodeTriples(r, rdf.NTriples)
}

func decodeTriples(r io.Reader, format rdf.Format) ([]Triple, error) {
	dec := rdf.NewTripleDecoder(r, format)
	decoded, err := dec.DecodeAll()
	if err != nil {
		log.Errorf("Error decoding triples: %v", err)
		return nil, err
	}
	triples := make([]Triple, 0, len(decoded))
	for _, t := range decoded {
		converted, err := TripleFromRDF(t)
		if err != nil {
			return nil, err
		}
		triples = append(triples, converted)
	}
	return triples, nil
}

// DecodeNQuads reads an N-Quads document and discards the graph of every quad
func DecodeNQuads(r io.Reader) ([]Triple, error) {
	dec := rdf.NewQuadDecoder(r, rdf.NQuads)
	decoded, err := dec.DecodeAll()
	if err != nil {
		log.Errorf("Error decoding quads: %v", err)
		return nil, err
	}
	triples := make([]Triple, 0, len(decoded))
	for _, q := range decoded {
		converted, err := TripleFromRDF(q.Triple)
		if err != nil {
			return nil, err
		}
		triples = append(triples, converted)
	}
	return triples, nil
}
