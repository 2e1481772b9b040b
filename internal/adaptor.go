package internal

import (
	"fmt"
	"net/url"
)

// Unify merges path and query parameters into one filter map. A key used both
// as a path and a query parameter is an error. Single-valued query parameters
// become strings, repeated ones keep all their values as a slice.
func Unify(path map[string]string, query url.Values) (map[string]any, error) {
	data := make(map[string]any, len(path)+len(query))
	for k, v := range path {
		data[k] = v
	}
	for key, values := range query {
		if _, exists := path[key]; exists {
			return nil, fmt.Errorf("%w: '%s' is used as both a path and a query parameter", ErrBadRequest, key)
		}
		switch len(values) {
		case 0:
		case 1:
			data[key] = values[0]
		default:
			data[key] = values
		}
	}
	return data, nil
}
