// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"fmt"
	"strings"

	"github.com/ontotrans/ontorec/internal/rdfterm"
)

// The sparql forms the mock understands
type sparqlForm string

const (
	formSelect      sparqlForm = "SELECT"
	formAsk         sparqlForm = "ASK"
	formInsertData  sparqlForm = "INSERT DATA"
	formDeleteWhere sparqlForm = "DELETE WHERE"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokVar
	tokTerm
	tokPunct
)

type sparqlToken struct {
	kind tokenKind
	text string
	term rdfterm.Term
}

// a pattern slot holds either a variable name or a term.
// A blank node in a where clause becomes a variable named by its label.
type slot struct {
	variable string
	term     rdfterm.Term
}

func (s slot) blank() bool {
	return strings.HasPrefix(s.variable, "_:")
}

type triplePattern [3]slot

// triple instantiates the pattern with a solution; false if a variable is unbound
func (p triplePattern) triple(solution map[string]rdfterm.Term) (rdfterm.Triple, bool) {
	var terms [3]rdfterm.Term
	for i, s := range p {
		if s.term != nil {
			terms[i] = s.term
			continue
		}
		term, ok := solution[s.variable]
		if !ok {
			return rdfterm.Triple{}, false
		}
		terms[i] = term
	}
	return rdfterm.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]}, true
}

type parsedSparql struct {
	form sparqlForm
	// nil means SELECT *
	projection []string
	patterns   []triplePattern
}

// variables lists every named variable in order of first appearance
func (q parsedSparql) variables() []string {
	vars := []string{}
	seen := map[string]bool{}
	for _, pattern := range q.patterns {
		for _, s := range pattern {
			if s.variable != "" && !s.blank() && !seen[s.variable] {
				seen[s.variable] = true
				vars = append(vars, s.variable)
			}
		}
	}
	return vars
}

func tokenize(input string) ([]sparqlToken, error) {
	var tokens []sparqlToken
	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{' || c == '}' || c == '.' || c == '*':
			tokens = append(tokens, sparqlToken{kind: tokPunct, text: string(c)})
			i++
		case c == '?' || c == '$':
			j := i + 1
			for j < len(input) && isVariableChar(input[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty variable name at offset %d", i)
			}
			tokens = append(tokens, sparqlToken{kind: tokVar, text: input[i+1 : j]})
			i = j
		case c == '<' || c == '"' || strings.HasPrefix(input[i:], "_:"):
			term, n, err := rdfterm.ScanTerm(input[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, sparqlToken{kind: tokTerm, term: term})
			i += n
		case isWordChar(c):
			j := i
			for j < len(input) && isWordChar(input[j]) {
				j++
			}
			tokens = append(tokens, sparqlToken{kind: tokWord, text: strings.ToUpper(input[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return tokens, nil
}

func isVariableChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordChar(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

type sparqlParser struct {
	tokens []sparqlToken
	pos    int
}

func (p *sparqlParser) peek() (sparqlToken, bool) {
	if p.pos >= len(p.tokens) {
		return sparqlToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *sparqlParser) expect(kind tokenKind, text string) error {
	tok, ok := p.peek()
	if !ok || tok.kind != kind || tok.text != text {
		return fmt.Errorf("expected %q", text)
	}
	p.pos++
	return nil
}

func parseMockSparql(input string) (parsedSparql, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return parsedSparql{}, err
	}
	p := &sparqlParser{tokens: tokens}
	first, ok := p.peek()
	if !ok || first.kind != tokWord {
		return parsedSparql{}, fmt.Errorf("expected a query form")
	}
	p.pos++

	var q parsedSparql
	switch first.text {
	case "SELECT":
		q.form = formSelect
		if err := p.expect(tokPunct, "*"); err != nil {
			q.projection = []string{}
			for tok, ok := p.peek(); ok && tok.kind == tokVar; tok, ok = p.peek() {
				q.projection = append(q.projection, tok.text)
				p.pos++
			}
			if len(q.projection) == 0 {
				return parsedSparql{}, fmt.Errorf("SELECT needs * or at least one variable")
			}
		}
		if err := p.expect(tokWord, "WHERE"); err != nil {
			return parsedSparql{}, err
		}
	case "ASK":
		q.form = formAsk
		// WHERE is optional for ASK
		_ = p.expect(tokWord, "WHERE")
	case "INSERT":
		q.form = formInsertData
		if err := p.expect(tokWord, "DATA"); err != nil {
			return parsedSparql{}, err
		}
	case "DELETE":
		q.form = formDeleteWhere
		if err := p.expect(tokWord, "WHERE"); err != nil {
			return parsedSparql{}, err
		}
	default:
		return parsedSparql{}, fmt.Errorf("unsupported query form %s", first.text)
	}

	if q.patterns, err = p.parseGroup(q.form != formInsertData); err != nil {
		return parsedSparql{}, err
	}
	if _, trailing := p.peek(); trailing {
		return parsedSparql{}, fmt.Errorf("unexpected content after closing brace")
	}
	if q.form == formInsertData {
		for _, pattern := range q.patterns {
			if _, ok := pattern.triple(nil); !ok {
				return parsedSparql{}, fmt.Errorf("INSERT DATA does not allow variables")
			}
		}
	}
	return q, nil
}

func (p *sparqlParser) parseGroup(blanksAsVariables bool) ([]triplePattern, error) {
	if err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	var patterns []triplePattern
	for {
		if p.expect(tokPunct, "}") == nil {
			return patterns, nil
		}
		var pattern triplePattern
		for i := range pattern {
			tok, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("unterminated group")
			}
			switch tok.kind {
			case tokVar:
				pattern[i] = slot{variable: tok.text}
			case tokTerm:
				if blank, ok := tok.term.(rdfterm.Blank); ok && blanksAsVariables {
					pattern[i] = slot{variable: string(blank)}
					break
				}
				pattern[i] = slot{term: tok.term}
			default:
				return nil, fmt.Errorf("expected a term or variable")
			}
			p.pos++
		}
		patterns = append(patterns, pattern)
		// the final dot before the brace is optional
		_ = p.expect(tokPunct, ".")
	}
}

// evaluate joins the patterns against the stored triples
func evaluate(db *mockDatabase, patterns []triplePattern) []map[string]rdfterm.Term {
	solutions := []map[string]rdfterm.Term{{}}
	triples := db.sortedTriples()
	for _, pattern := range patterns {
		var next []map[string]rdfterm.Term
		for _, solution := range solutions {
			for _, triple := range triples {
				if extended, ok := match(pattern, triple, solution); ok {
					next = append(next, extended)
				}
			}
		}
		solutions = next
	}
	return solutions
}

func match(pattern triplePattern, triple rdfterm.Triple, solution map[string]rdfterm.Term) (map[string]rdfterm.Term, bool) {
	extended := make(map[string]rdfterm.Term, len(solution)+3)
	for k, v := range solution {
		extended[k] = v
	}
	actual := [3]rdfterm.Term{triple.Subject, triple.Predicate, triple.Object}
	for i, s := range pattern {
		want := s.term
		if want == nil {
			want = extended[s.variable]
		}
		if want != nil {
			if want.N3() != actual[i].N3() {
				return nil, false
			}
			continue
		}
		extended[s.variable] = actual[i]
	}
	return extended, true
}
