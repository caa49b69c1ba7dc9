package triplestore

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTurtle parses the constrained subset of Turtle the ontology
// documents are authored in: @prefix directives, full IRIs, prefixed
// names, the "a" shorthand for rdf:type, plain/typed/language-tagged
// string literals, and ";"/"," predicate-object-list continuations.
// It does not support blank nodes, collections, or numeric/boolean
// literal shorthand, none of which the ontology documents use.
func ParseTurtle(src string) ([]Triple, error) {
	p := &turtleParser{toks: tokenizeTurtle(src), prefixes: map[string]string{}}
	return p.parse()
}

type turtleParser struct {
	toks     []string
	pos      int
	prefixes map[string]string
}

func (p *turtleParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *turtleParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *turtleParser) parse() ([]Triple, error) {
	var triples []Triple
	for p.peek() != "" {
		tok := p.peek()
		if tok == "@prefix" {
			p.next()
			prefix := strings.TrimSuffix(p.next(), ":")
			iri := p.next()
			p.prefixes[prefix] = trimIRI(iri)
			if p.peek() == "." {
				p.next()
			}
			continue
		}

		subject, err := p.resolveTerm(p.next())
		if err != nil {
			return nil, err
		}

		for {
			predTok := p.next()
			if predTok == "" {
				return nil, fmt.Errorf("triplestore: unexpected end of input after subject %q", subject)
			}
			predicate := "a"
			if predTok != "a" {
				r, err := p.resolveTerm(predTok)
				if err != nil {
					return nil, err
				}
				predicate = r
			} else {
				predicate = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
			}

			for {
				objTok := p.next()
				obj, kind, datatype, lang, err := p.resolveObject(objTok)
				if err != nil {
					return nil, err
				}
				triples = append(triples, Triple{
					Subject:    subject,
					Predicate:  predicate,
					Object:     obj,
					ObjectKind: kind,
					Datatype:   datatype,
					Lang:       lang,
				})

				if p.peek() == "," {
					p.next()
					continue
				}
				break
			}

			if p.peek() == ";" {
				p.next()
				continue
			}
			break
		}

		if p.peek() != "." {
			return nil, fmt.Errorf("triplestore: expected '.' terminating statement for subject %q, got %q", subject, p.peek())
		}
		p.next()
	}
	return triples, nil
}

func (p *turtleParser) resolveTerm(tok string) (string, error) {
	if tok == "" {
		return "", fmt.Errorf("triplestore: unexpected end of input")
	}
	if strings.HasPrefix(tok, "<") {
		return trimIRI(tok), nil
	}
	if idx := strings.Index(tok, ":"); idx >= 0 {
		prefix, local := tok[:idx], tok[idx+1:]
		ns, ok := p.prefixes[prefix]
		if !ok {
			return "", fmt.Errorf("triplestore: unknown prefix %q", prefix)
		}
		return ns + local, nil
	}
	return tok, nil
}

func (p *turtleParser) resolveObject(tok string) (value string, kind TermKind, datatype string, lang string, err error) {
	if strings.HasPrefix(tok, "\"") {
		// string literal, possibly with ^^datatype or @lang suffix already split by tokenizer
		unquoted, rest := splitLiteralSuffix(tok)
		value = unquoted
		kind = TermLiteral
		if strings.HasPrefix(rest, "^^") {
			dt, dtErr := p.resolveTerm(strings.TrimPrefix(rest, "^^"))
			if dtErr != nil {
				return "", "", "", "", dtErr
			}
			datatype = dt
		} else if strings.HasPrefix(rest, "@") {
			lang = strings.TrimPrefix(rest, "@")
		}
		return value, kind, datatype, lang, nil
	}

	iri, err := p.resolveTerm(tok)
	if err != nil {
		return "", "", "", "", err
	}
	return iri, TermIRI, "", "", nil
}

func trimIRI(tok string) string {
	return strings.TrimSuffix(strings.TrimPrefix(tok, "<"), ">")
}

func splitLiteralSuffix(tok string) (value, suffix string) {
	// tok looks like "quoted text"^^<iri> or "quoted text"@lang or just "quoted text"
	end := strings.LastIndex(tok, "\"")
	quoted := tok[:end+1]
	suffix = tok[end+1:]
	unq, err := strconv.Unquote(quoted)
	if err != nil {
		unq = strings.Trim(quoted, "\"")
	}
	return unq, suffix
}

// tokenizeTurtle splits Turtle source into a flat token stream: IRIs
// (<...>), quoted literals (with optional ^^datatype/@lang suffix kept
// attached), prefixed/bare names, and the punctuation ".", ";", ",".
func tokenizeTurtle(src string) []string {
	var toks []string
	runes := []rune(src)
	n := len(runes)
	i := 0

	skipWhitespaceAndComments := func() {
		for i < n {
			if runes[i] == '#' {
				for i < n && runes[i] != '\n' {
					i++
				}
				continue
			}
			if runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\n' || runes[i] == '\r' {
				i++
				continue
			}
			break
		}
	}

	for {
		skipWhitespaceAndComments()
		if i >= n {
			break
		}
		switch runes[i] {
		case '.', ';', ',':
			toks = append(toks, string(runes[i]))
			i++
		case '<':
			start := i
			i++
			for i < n && runes[i] != '>' {
				i++
			}
			i++ // consume '>'
			toks = append(toks, string(runes[start:i]))
		case '"':
			start := i
			i++
			for i < n {
				if runes[i] == '\\' {
					i += 2
					continue
				}
				if runes[i] == '"' {
					i++
					break
				}
				i++
			}
			// optional ^^<iri> or ^^prefix:local or @lang suffix
			if i+1 < n && runes[i] == '^' && runes[i+1] == '^' {
				i += 2
				if i < n && runes[i] == '<' {
					for i < n && runes[i] != '>' {
						i++
					}
					i++
				} else {
					for i < n && !isBoundary(runes[i]) {
						i++
					}
				}
			} else if i < n && runes[i] == '@' {
				i++
				for i < n && !isBoundary(runes[i]) {
					i++
				}
			}
			toks = append(toks, string(runes[start:i]))
		default:
			start := i
			for i < n && !isBoundary(runes[i]) {
				i++
			}
			if i == start {
				i++ // avoid infinite loop on stray character
				continue
			}
			toks = append(toks, string(runes[start:i]))
		}
	}
	return toks
}

func isBoundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '.', ';', ',', '<', '"', '#':
		return true
	}
	return false
}
