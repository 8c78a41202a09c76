// Package sqlrefs finds the tables a SQL statement reads.
//
// It is a scanner, not a parser: names following FROM and JOIN (and the
// comma-separated items of a FROM list) are collected at every nesting level,
// CTE names are excluded, and table functions are skipped.
package sqlrefs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Extractor implements lineage.Extractor on top of Extract.
type Extractor struct{}

// ExtractInputs returns the tables sql reads, without a namespace.
func (Extractor) ExtractInputs(sql string) ([]core.TableRef, error) {
	names, err := Extract(sql)
	if err != nil {
		return nil, err
	}
	refs := make([]core.TableRef, len(names))
	for i, name := range names {
		refs[i] = core.TableRef{Name: name}
	}
	return refs, nil
}

// Extract returns the deduplicated, sorted names of the tables sql reads.
func Extract(sql string) ([]string, error) {
	tokens, err := tokenize(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize sql: %w", err)
	}

	s := &scanner{
		tokens: tokens,
		ctes:   collectCTEs(tokens),
		found:  make(map[string]struct{}),
	}
	s.scan(0, len(tokens)-1) // exclude EOF

	names := make([]string, 0, len(s.found))
	for name := range s.found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type scanner struct {
	tokens []token
	ctes   map[string]struct{}
	found  map[string]struct{}
}

// scan walks tokens[start:end] looking for FROM and JOIN.
func (s *scanner) scan(start, end int) {
	for i := start; i < end; i++ {
		tok := s.tokens[i]
		switch {
		case tok.typ == tokenKeyword && tok.literal == "from":
			i = s.fromList(i+1, end) - 1
		case tok.typ == tokenKeyword && tok.literal == "join":
			i = s.tableItem(i+1, end) - 1
		case tok.typ == tokenIdent && i+1 < end && s.tokens[i+1].typ == tokenLParen:
			// FROM inside extract(year FROM ts) and friends is not a table reference
			if _, ok := fromFunctions[strings.ToLower(tok.literal)]; ok {
				i = s.matchParen(i+1, end)
			}
		}
	}
}

// fromList reads comma-separated FROM items and returns the index after the list.
func (s *scanner) fromList(i, end int) int {
	for {
		i = s.tableItem(i, end)
		if i >= end || s.tokens[i].typ != tokenComma {
			return i
		}
		i++
	}
}

// tableItem reads one FROM item with its alias and returns the index after it.
func (s *scanner) tableItem(i, end int) int {
	if i < end && s.tokens[i].typ == tokenKeyword && s.tokens[i].literal == "lateral" {
		i++
	}
	if i >= end {
		return i
	}

	if s.tokens[i].typ == tokenLParen {
		closeIdx := s.matchParen(i, end)
		s.scan(i+1, closeIdx)
		return s.skipAlias(closeIdx+1, end)
	}

	name, next := s.qualifiedName(i, end)
	if name == "" {
		return i
	}
	if next < end && s.tokens[next].typ == tokenLParen {
		// table function: read_csv('...'), generate_series(1, 10)
		closeIdx := s.matchParen(next, end)
		s.scan(next+1, closeIdx)
		return s.skipAlias(closeIdx+1, end)
	}

	if !strings.Contains(name, ".") {
		if _, isCTE := s.ctes[strings.ToLower(name)]; isCTE {
			return s.skipAlias(next, end)
		}
	}
	s.found[name] = struct{}{}
	return s.skipAlias(next, end)
}

// qualifiedName reads ident(.ident)* starting at i.
func (s *scanner) qualifiedName(i, end int) (string, int) {
	var parts []string
	for i < end && isName(s.tokens[i]) {
		parts = append(parts, s.tokens[i].literal)
		i++
		if i+1 < end && s.tokens[i].typ == tokenDot && isName(s.tokens[i+1]) {
			i++
			continue
		}
		break
	}
	return strings.Join(parts, "."), i
}

// skipAlias skips an optional "AS alias" or bare alias and its column list.
func (s *scanner) skipAlias(i, end int) int {
	if i < end && s.tokens[i].typ == tokenKeyword && s.tokens[i].literal == "as" {
		i++
	}
	if i < end && isName(s.tokens[i]) {
		i++
		if i < end && s.tokens[i].typ == tokenLParen {
			i = s.matchParen(i, end) + 1
		}
	}
	return i
}

// matchParen returns the index of the parenthesis closing the one at open,
// or end-1 if it is not closed within range.
func (s *scanner) matchParen(open, end int) int {
	depth := 0
	for i := open; i < end; i++ {
		switch s.tokens[i].typ {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return end - 1
}

// collectCTEs returns the lower-cased names defined by WITH clauses.
func collectCTEs(tokens []token) map[string]struct{} {
	ctes := make(map[string]struct{})
	s := &scanner{tokens: tokens}
	end := len(tokens) - 1

	for i := 0; i < end; i++ {
		if tokens[i].typ != tokenKeyword || tokens[i].literal != "with" {
			continue
		}
		j := i + 1
		if j < end && tokens[j].typ == tokenKeyword && tokens[j].literal == "recursive" {
			j++
		}
		for j < end && isName(tokens[j]) {
			ctes[strings.ToLower(tokens[j].literal)] = struct{}{}
			j++
			if j < end && tokens[j].typ == tokenLParen { // column list
				j = s.matchParen(j, end) + 1
			}
			for j < end && tokens[j].typ == tokenKeyword &&
				(tokens[j].literal == "as" || tokens[j].literal == "not" || tokens[j].literal == "materialized") {
				j++
			}
			if j < end && tokens[j].typ == tokenLParen {
				j = s.matchParen(j, end) + 1
			}
			if j >= end || tokens[j].typ != tokenComma {
				break
			}
			j++
		}
	}
	return ctes
}

func isName(t token) bool {
	return t.typ == tokenIdent || t.typ == tokenQuotedIdent
}
