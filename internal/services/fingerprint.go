package services

import (
	"strconv"
	"strings"

	"github.com/tbourn/go-catalog-cache/internal/domain"
)

// Cache key namespaces.
const (
	ProductKeyPrefix = "products"
	EventKeyPrefix   = "webhook_event:"
	TokenKey         = "oauth_access_token"
)

var segmentEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// Fingerprint derives the cache key for a normalized query:
//
//	products:<category>:<search>:<minPrice>:<maxPrice>:<cursor>[:<limit>]
//
// Absent fields are empty. Backslash and colon inside string fields are
// escaped so distinct queries never share a key. The limit segment is only
// present when the limit differs from defaultLimit, the page size the caller
// applies to queries without one, so default pages keep the short key.
func Fingerprint(q domain.ProductQuery, defaultLimit int) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(ProductKeyPrefix)

	b.WriteByte(':')
	if q.Category != nil {
		b.WriteString(segmentEscaper.Replace(*q.Category))
	}
	b.WriteByte(':')
	if q.Search != nil {
		b.WriteString(segmentEscaper.Replace(*q.Search))
	}
	b.WriteByte(':')
	if q.MinPrice != nil {
		b.WriteString(formatPrice(*q.MinPrice))
	}
	b.WriteByte(':')
	if q.MaxPrice != nil {
		b.WriteString(formatPrice(*q.MaxPrice))
	}
	b.WriteByte(':')
	if q.Cursor != nil {
		b.WriteString(strconv.FormatUint(*q.Cursor, 10))
	}
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultLimit
	}
	if q.Limit != defaultLimit {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String()
}

// formatPrice renders the shortest decimal that round-trips. -0 is folded
// into 0.
func formatPrice(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
