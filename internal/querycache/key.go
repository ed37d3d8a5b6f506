package querycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const DefaultNamespace = "boards"

// Params are the query parameters a listing was fetched with.
type Params map[string]any

// BuildKey renders params as namespace:name=JSON(value)&... with names
// sorted, so insertion order never changes the key.
func BuildKey(namespace string, params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	builder.Grow(len(namespace) + 1 + len(names)*16)
	builder.WriteString(namespace)
	builder.WriteString(":")
	for i, name := range names {
		if i > 0 {
			builder.WriteString("&")
		}
		builder.WriteString(name)
		builder.WriteString("=")
		builder.WriteString(encodeValue(params[name]))
	}
	return builder.String()
}

func encodeValue(value any) string {
	data, err := marshalJSON(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// marshalJSON is json.Marshal without HTML escaping, so keys and records
// match what a browser's JSON.stringify would produce.
func marshalJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
