// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package rdfterm

import (
	"errors"
	"fmt"
	"strings"
)

// Returned when a caller supplied string cannot be read as an RDF term
var ErrMalformedTerm = errors.New("malformed term")

// Binding is one cell of a SPARQL JSON result row
type Binding struct {
	Type     string
	Value    string
	Language string
	Datatype string
}

// DecodeError is returned when a result binding has a type tag
// other than uri, literal or bnode
type DecodeError struct {
	Type string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unexpected term type %q in query result binding", e.Type)
}

// DecodeBinding converts a SPARQL JSON binding into a Term
func DecodeBinding(b Binding) (Term, error) {
	switch b.Type {
	case "uri":
		return IRI(b.Value), nil
	case "literal":
		lit := Literal{Value: b.Value, Language: b.Language}
		// some stores send rdf:langString alongside the tag; the tag wins
		if lit.Language == "" {
			lit.Datatype = b.Datatype
		}
		return lit, nil
	case "bnode":
		return NewBlank(b.Value), nil
	default:
		return nil, &DecodeError{Type: b.Type}
	}
}

// EncodeBinding is the inverse of DecodeBinding
func EncodeBinding(t Term) Binding {
	switch v := t.(type) {
	case IRI:
		return Binding{Type: "uri", Value: string(v)}
	case Blank:
		return Binding{Type: "bnode", Value: strings.TrimPrefix(string(v), "_:")}
	case Literal:
		return Binding{Type: "literal", Value: v.Value, Language: v.Language, Datatype: v.Datatype}
	default:
		return Binding{Type: "literal", Value: t.String()}
	}
}

// Encode renders a term for use inside a SPARQL statement.
// Unbound positions become the variable named after the position.
func Encode(t Term, pos Position) string {
	if t == nil {
		return "?" + pos.Variable()
	}
	return t.N3()
}

// ParseTerm reads a term from a caller supplied string.
//
// Strings starting with '<' are bracketed IRIs and strings starting with '"'
// are N-Triples literals. "_:" introduces a blank node. Anything else is taken
// to be a bare IRI and is wrapped in angle brackets when encoded.
func ParseTerm(raw string) (Term, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty string", ErrMalformedTerm)
	}
	switch {
	case strings.HasPrefix(trimmed, "<"), strings.HasPrefix(trimmed, `"`), strings.HasPrefix(trimmed, "_:"):
		term, n, err := ScanTerm(trimmed)
		if err != nil {
			return nil, err
		}
		if n != len(trimmed) {
			return nil, fmt.Errorf("%w %q: unexpected trailing content %q", ErrMalformedTerm, raw, trimmed[n:])
		}
		return term, nil
	default:
		if strings.ContainsAny(trimmed, "<> \"{}") {
			return nil, fmt.Errorf("%w %q: not a valid IRI", ErrMalformedTerm, raw)
		}
		return IRI(trimmed), nil
	}
}

// ScanTerm reads one N-Triples term from the start of input and reports
// how many bytes it consumed
func ScanTerm(input string) (Term, int, error) {
	n, err := termLength(input)
	if err != nil {
		return nil, 0, err
	}
	term, err := decodeTerm(input[:n])
	if err != nil {
		return nil, 0, err
	}
	return term, n, nil
}

// termLength only finds where the leading term ends; decodeTerm validates it
func termLength(input string) (int, error) {
	switch {
	case input == "":
		return 0, fmt.Errorf("%w: empty input", ErrMalformedTerm)
	case input[0] == '<':
		return iriLength(input)
	case input[0] == '"':
		return literalLength(input)
	case strings.HasPrefix(input, "_:"):
		n := 2
		for n < len(input) && isLabelChar(input[n]) {
			n++
		}
		if n == 2 {
			return 0, fmt.Errorf("%w: blank node without label", ErrMalformedTerm)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %q does not start a term", ErrMalformedTerm, firstWord(input))
	}
}

func iriLength(input string) (int, error) {
	end := strings.IndexAny(input, "> \t\n")
	if end < 0 || input[end] != '>' {
		return 0, fmt.Errorf("%w: unterminated IRI %q", ErrMalformedTerm, firstWord(input))
	}
	return end + 1, nil
}

func literalLength(input string) (int, error) {
	n := -1
	for i := 1; i < len(input); i++ {
		if input[i] == '\\' {
			i++
			continue
		}
		if input[i] == '"' {
			n = i + 1
			break
		}
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: unterminated literal", ErrMalformedTerm)
	}
	switch {
	case strings.HasPrefix(input[n:], "@"):
		start := n + 1
		n = start
		for n < len(input) && isLangChar(input[n]) {
			n++
		}
		if n == start {
			return 0, fmt.Errorf("%w: empty language tag", ErrMalformedTerm)
		}
	case strings.HasPrefix(input[n:], "^^"):
		n += 2
		if n >= len(input) || input[n] != '<' {
			return 0, fmt.Errorf("%w: datatype must be a bracketed IRI", ErrMalformedTerm)
		}
		length, err := iriLength(input[n:])
		if err != nil {
			return 0, err
		}
		n += length
	}
	return n, nil
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

func isLangChar(c byte) bool {
	return c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isLabelChar(c byte) bool {
	return c == '_' || isLangChar(c)
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}
