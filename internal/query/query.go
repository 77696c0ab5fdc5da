// Package query exposes a read-only view over a page's URL query string.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrMalformedBool is returned when a boolean-like parameter is present but is
// neither "true" nor "false".
var ErrMalformedBool = errors.New("query: malformed boolean parameter")

// MalformedBoolError describes the offending parameter and value.
type MalformedBoolError struct {
	Name  string
	Value string
}

// Error implements the error interface.
func (e *MalformedBoolError) Error() string {
	return fmt.Sprintf("query: parameter %q has non-boolean value %q", e.Name, e.Value)
}

// Unwrap exposes ErrMalformedBool for errors.Is.
func (e *MalformedBoolError) Unwrap() error { return ErrMalformedBool }

// PageQuery is an immutable name/value mapping derived from a single navigation.
// Only the first value of a repeated key is retained.
type PageQuery struct {
	values map[string]string
}

// Parse builds a PageQuery from a raw query string (without the leading '?').
// Only '&' separates pairs, so ';' stays part of a value. Pairs with invalid
// escapes are skipped; the remaining pairs are kept.
func Parse(rawQuery string) PageQuery {
	values := make(map[string]string)
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || key == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		if _, exists := values[key]; exists {
			continue
		}
		values[key] = value
	}
	return PageQuery{values: values}
}

// Get returns the value for name and whether it was present.
func (q PageQuery) Get(name string) (string, bool) {
	v, ok := q.values[name]
	return v, ok
}

// Value returns the value for name or an empty string when absent.
func (q PageQuery) Value(name string) string {
	return q.values[name]
}

// Len returns the number of distinct parameters.
func (q PageQuery) Len() int { return len(q.values) }

// Keys returns the parameter names in lexical order.
func (q PageQuery) Keys() []string {
	keys := make([]string, 0, len(q.values))
	for k := range q.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bool interprets name as a boolean. An absent or empty parameter yields
// fallback. Values are matched case-insensitively; anything other than
// "true" or "false" yields fallback together with a *MalformedBoolError.
func (q PageQuery) Bool(name string, fallback bool) (bool, error) {
	raw, ok := q.values[name]
	if !ok {
		return fallback, nil
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return fallback, &MalformedBoolError{Name: name, Value: raw}
}

// Encode renders the query in canonical (key-sorted) form.
func (q PageQuery) Encode() string {
	v := make(url.Values, len(q.values))
	for key, value := range q.values {
		v.Set(key, value)
	}
	return v.Encode()
}
