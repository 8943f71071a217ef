package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultLimit is the page size used when a query does not specify one.
const DefaultLimit = 10

// ProductQuery is a catalog listing request. Every filter is optional: a nil
// pointer means "not set". Limit is always present after Normalize.
type ProductQuery struct {
	Category *string  // exact match
	Search   *string  // substring of Name
	MinPrice *float64 // inclusive lower bound
	MaxPrice *float64 // inclusive upper bound
	Cursor   *uint64  // exclusive lower bound on ID
	Limit    int
}

// Normalize returns a copy of q in canonical form:
//   - string filters are NFC-normalized; empty or all-blank values become nil,
//     anything else is kept as given (category is an exact match)
//   - Limit <= 0 becomes defaultLimit, then it is clamped to [1, maxLimit]
//
// A maxLimit <= 0 disables the upper clamp.
func (q ProductQuery) Normalize(defaultLimit, maxLimit int) ProductQuery {
	out := q
	out.Category = normString(q.Category)
	out.Search = normString(q.Search)

	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if out.Limit <= 0 {
		out.Limit = defaultLimit
	}
	if maxLimit > 0 && out.Limit > maxLimit {
		out.Limit = maxLimit
	}
	return out
}

func normString(s *string) *string {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(*s) == "" {
		return nil
	}
	v := norm.NFC.String(*s)
	return &v
}

// Ptr returns a pointer to v. Handy for building ProductQuery literals.
func Ptr[T any](v T) *T { return &v }
