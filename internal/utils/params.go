// Package utils provides small helpers shared by the HTTP layer. They carry
// no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// OptionalString returns nil for an absent parameter, else a pointer to s.
// Blank values are kept; normalization decides what they mean.
func OptionalString(s string, present bool) *string {
	if !present {
		return nil
	}
	return &s
}

// ParseOptionalFloat parses s as a float64. Blank input yields (nil, nil).
func ParseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptionalUint parses s as a base-10 uint64. Blank input yields (nil, nil).
func ParseOptionalUint(s string) (*uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// AtoiDefault parses s as an int, returning def when s is blank. Unlike
// strconv.Atoi alone, a malformed value is reported rather than swallowed.
func AtoiDefault(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
