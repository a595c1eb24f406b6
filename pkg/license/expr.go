package license

import (
	"fmt"
	"strings"
)

// Expr is a parsed license expression: a single identifier or a boolean
// combination of sub-expressions. Modeling the combinators as a small
// tagged tree keeps the satisfaction algorithm structurally recursive.
type Expr interface {
	isExpr()
	String() string
}

// Leaf is a bare license identifier, e.g. "MIT" or "Apache-2.0".
type Leaf struct {
	ID string
}

// And requires every sub-expression to be acceptable.
type And struct {
	Exprs []Expr
}

// Or requires at least one sub-expression to be acceptable.
type Or struct {
	Exprs []Expr
}

func (Leaf) isExpr() {}
func (And) isExpr()  {}
func (Or) isExpr()   {}

func (l Leaf) String() string { return l.ID }

func (a And) String() string {
	parts := make([]string, len(a.Exprs))
	for i, e := range a.Exprs {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (o Or) String() string {
	parts := make([]string, len(o.Exprs))
	for i, e := range o.Exprs {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Parse parses an SPDX-style license expression: identifiers combined
// with AND/OR and parenthesized groups. AND binds tighter than OR.
// Callers treat a parse failure as "unlicensed" rather than aborting.
func Parse(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected token %q in license expression", p.toks[p.pos])
	}
	return expr, nil
}

func tokenize(input string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(input) && input[j] != ' ' && input[j] != '\t' && input[j] != '(' && input[j] != ')' {
				j++
			}
			toks = append(toks, input[i:j])
			i = j
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty license expression")
	}
	return toks, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	branches := []Expr{left}
	for {
		tok, ok := p.peek()
		if !ok || !strings.EqualFold(tok, "OR") {
			break
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		branches = append(branches, right)
	}
	if len(branches) == 1 {
		return branches[0], nil
	}
	return Or{Exprs: branches}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	parts := []Expr{left}
	for {
		tok, ok := p.peek()
		if !ok || !strings.EqualFold(tok, "AND") {
			break
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		parts = append(parts, right)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return And{Exprs: parts}, nil
}

func (p *parser) parseTerm() (Expr, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("license expression ended unexpectedly")
	}
	if tok == "(" {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing != ")" {
			return nil, fmt.Errorf("unbalanced parenthesis in license expression")
		}
		p.pos++
		return inner, nil
	}
	if tok == ")" || strings.EqualFold(tok, "AND") || strings.EqualFold(tok, "OR") {
		return nil, fmt.Errorf("expected license identifier, got %q", tok)
	}
	p.pos++
	return Leaf{ID: tok}, nil
}
