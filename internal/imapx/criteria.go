package imapx

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

const searchDateLayout = "02-Jan-2006"

// compileCriteria encodes a compiled SEARCH token sequence into the
// client library's structured criteria form. It implements the
// protocol's own search-key grammar — binary positional OR, NOT
// applied to the single following key, parenthesized AND groups — so
// the server-observed semantics of the token program are preserved
// exactly. A leading CHARSET directive pair is accepted and dropped;
// the client library negotiates charsets itself.
func compileCriteria(tokens []string) (*imap.SearchCriteria, error) {
	if len(tokens) >= 2 && strings.EqualFold(tokens[0], "CHARSET") {
		tokens = tokens[2:]
	}

	r := &tokenReader{tokens: tokens}
	criteria := &imap.SearchCriteria{}
	for !r.eof() {
		if err := parseKey(r, criteria); err != nil {
			return nil, err
		}
	}
	return criteria, nil
}

type tokenReader struct {
	tokens []string
	pos    int
}

func (r *tokenReader) eof() bool {
	return r.pos >= len(r.tokens)
}

func (r *tokenReader) next() (string, error) {
	if r.eof() {
		return "", fmt.Errorf("unexpected end of search program")
	}
	tok := r.tokens[r.pos]
	r.pos++
	return tok, nil
}

func (r *tokenReader) peek() string {
	if r.eof() {
		return ""
	}
	return r.tokens[r.pos]
}

// parseKey consumes one search key (possibly compound) and merges its
// meaning into criteria.
func parseKey(r *tokenReader, criteria *imap.SearchCriteria) error {
	tok, err := r.next()
	if err != nil {
		return err
	}

	switch strings.ToUpper(tok) {
	case "ALL":
		// Matches everything; contributes no restriction.

	case "FROM":
		return parseHeaderKey(r, criteria, "From")
	case "TO":
		return parseHeaderKey(r, criteria, "To")
	case "CC":
		return parseHeaderKey(r, criteria, "Cc")
	case "SUBJECT":
		return parseHeaderKey(r, criteria, "Subject")

	case "SINCE":
		d, err := parseDateOperand(r, tok)
		if err != nil {
			return err
		}
		criteria.Since = d
	case "BEFORE":
		d, err := parseDateOperand(r, tok)
		if err != nil {
			return err
		}
		criteria.Before = d

	case "NOT":
		var sub imap.SearchCriteria
		if err := parseKey(r, &sub); err != nil {
			return fmt.Errorf("NOT: %w", err)
		}
		criteria.Not = append(criteria.Not, sub)

	case "OR":
		var left, right imap.SearchCriteria
		if err := parseKey(r, &left); err != nil {
			return fmt.Errorf("OR left operand: %w", err)
		}
		if err := parseKey(r, &right); err != nil {
			return fmt.Errorf("OR right operand: %w", err)
		}
		criteria.Or = append(criteria.Or, [2]imap.SearchCriteria{left, right})

	case "(":
		for r.peek() != ")" {
			if r.eof() {
				return fmt.Errorf("unterminated group in search program")
			}
			if err := parseKey(r, criteria); err != nil {
				return err
			}
		}
		_, _ = r.next() // consume ")"

	default:
		return fmt.Errorf("unsupported search token %q", tok)
	}

	return nil
}

func parseHeaderKey(r *tokenReader, criteria *imap.SearchCriteria, field string) error {
	value, err := r.next()
	if err != nil {
		return fmt.Errorf("%s: missing operand", strings.ToUpper(field))
	}
	criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
		Key:   field,
		Value: value,
	})
	return nil
}

func parseDateOperand(r *tokenReader, opcode string) (time.Time, error) {
	value, err := r.next()
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: missing operand", opcode)
	}
	d, err := time.Parse(searchDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q", opcode, value)
	}
	return d, nil
}
