package ccl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Reply is a decoded REPLY object
type Reply map[string]any

// Has reports whether key is present
func (r Reply) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String renders the value at key as text. Missing keys and null give "".
func (r Reply) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// Keys returns the field names in sorted order
func (r Reply) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
