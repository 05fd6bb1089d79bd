package query

import (
	"fmt"
	"time"
)

// Token values with a fixed meaning in the compiled sequence.
const (
	// MatchAll is the token a top-level empty filter compiles to.
	MatchAll = "ALL"

	// GroupOpen and GroupClose delimit a parenthesized AND group.
	GroupOpen  = "("
	GroupClose = ")"
)

const (
	isoDateLayout  = "2006-01-02"
	imapDateLayout = "02-Jan-2006"
)

// Compile translates a filter into the flat SEARCH token sequence.
// A filter with nothing set compiles to the single MatchAll token.
// The only failure mode is a malformed Since/Before date, which is
// fatal for the whole request.
//
// The token algebra intentionally reproduces the behavior this tool
// has always had rather than a textbook boolean encoding:
//
//   - leaf fields are emitted in the fixed order from, to, cc,
//     subject, since, before, then the NOT group, then the OR chain;
//   - all members of Not are concatenated into one parenthesized
//     group under a single NOT, i.e. NOT c1 AND NOT c2 and not
//     NOT (c1 OR c2);
//   - Or folds left-associatively into the binary positional OR
//     opcode without any bracketing (OR OR a b c), so a multi-field
//     member leaks its trailing fields out of the disjunction. Tests
//     pin this down; do not "fix" it without revisiting the callers.
func Compile(f Filter) ([]string, error) {
	tokens, err := compile(f)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []string{MatchAll}, nil
	}
	return tokens, nil
}

// compile emits the token contribution of one expression. An empty
// expression contributes nothing; only the top level substitutes
// MatchAll.
func compile(f Filter) ([]string, error) {
	if f.IsZero() {
		return nil, nil
	}

	var tokens []string

	leaves := []struct {
		opcode string
		value  string
		isDate bool
	}{
		{"FROM", f.From, false},
		{"TO", f.To, false},
		{"CC", f.Cc, false},
		{"SUBJECT", f.Subject, false},
		{"SINCE", f.Since, true},
		{"BEFORE", f.Before, true},
	}

	for _, leaf := range leaves {
		if leaf.value == "" {
			continue
		}
		value := leaf.value
		if leaf.isDate {
			d, err := formatDate(value)
			if err != nil {
				return nil, fmt.Errorf("criteria %s: %w", leaf.opcode, err)
			}
			value = d
		}
		tokens = append(tokens, leaf.opcode, value)
	}

	if len(f.Not) > 0 {
		var group []string
		for _, sub := range f.Not {
			subTokens, err := compile(sub)
			if err != nil {
				return nil, err
			}
			group = append(group, subTokens...)
		}
		if len(group) > 0 {
			tokens = append(tokens, "NOT", GroupOpen)
			tokens = append(tokens, group...)
			tokens = append(tokens, GroupClose)
		}
	}

	if len(f.Or) >= 2 {
		groups := make([][]string, 0, len(f.Or))
		for _, sub := range f.Or {
			subTokens, err := compile(sub)
			if err != nil {
				return nil, err
			}
			if len(subTokens) > 0 {
				groups = append(groups, subTokens)
			}
		}

		if len(groups) >= 2 {
			chain := append([]string{"OR"}, groups[0]...)
			chain = append(chain, groups[1]...)
			for _, group := range groups[2:] {
				rewrapped := make([]string, 0, len(chain)+len(group)+1)
				rewrapped = append(rewrapped, "OR")
				rewrapped = append(rewrapped, chain...)
				rewrapped = append(rewrapped, group...)
				chain = rewrapped
			}
			tokens = append(tokens, chain...)
		} else if len(groups) == 1 {
			tokens = append(tokens, groups[0]...)
		}
	}

	return tokens, nil
}

// formatDate converts an ISO date (2023-01-15) into the protocol's
// textual form (15-Jan-2023).
func formatDate(iso string) (string, error) {
	d, err := time.Parse(isoDateLayout, iso)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", iso)
	}
	return d.Format(imapDateLayout), nil
}
