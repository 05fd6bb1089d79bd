// Package query models mailbox search filters and compiles them into
// the flat token sequence understood by the IMAP SEARCH command.
package query

import "fmt"

// Filter is a search filter expression. Leaf fields present on the
// same Filter combine with AND. Substring fields are matched
// case-insensitively by the server; Since and Before are calendar
// dates in ISO form (YYYY-MM-DD).
type Filter struct {
	From    string
	To      string
	Cc      string
	Subject string
	Since   string
	Before  string

	// Not holds sub-expressions that are negated as one merged group:
	// NOT applies once to the concatenation of all compiled members.
	Not []Filter

	// Or holds sub-expressions of which any one matching suffices.
	// A single-element list contributes nothing.
	Or []Filter
}

// IsZero reports whether no field of the filter is set.
func (f Filter) IsZero() bool {
	return f.From == "" && f.To == "" && f.Cc == "" &&
		f.Subject == "" && f.Since == "" && f.Before == "" &&
		len(f.Not) == 0 && len(f.Or) == 0
}

// ParseFilter validates a decoded JSON object into a Filter.
// Unrecognized keys are silently ignored; recognized keys with the
// wrong shape are rejected.
func ParseFilter(raw map[string]any) (Filter, error) {
	var f Filter

	for key, val := range raw {
		switch key {
		case "from", "to", "cc", "subject", "since", "before":
			s, ok := val.(string)
			if !ok {
				return Filter{}, fmt.Errorf(
					"criteria key %q: expected string, got %T", key, val,
				)
			}
			switch key {
			case "from":
				f.From = s
			case "to":
				f.To = s
			case "cc":
				f.Cc = s
			case "subject":
				f.Subject = s
			case "since":
				f.Since = s
			case "before":
				f.Before = s
			}
		case "not", "or":
			subs, err := parseFilterList(key, val)
			if err != nil {
				return Filter{}, err
			}
			if key == "not" {
				f.Not = subs
			} else {
				f.Or = subs
			}
		default:
			// Unknown keys are ignored, matching the documented
			// match-everything fallback for unrecognized input.
		}
	}

	return f, nil
}

func parseFilterList(key string, val any) ([]Filter, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf(
			"criteria key %q: expected array, got %T", key, val,
		)
	}

	subs := make([]Filter, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf(
				"criteria key %q[%d]: expected object, got %T", key, i, item,
			)
		}
		sub, err := ParseFilter(obj)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, nil
}
