package nomad

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params are query string parameters for a single request. Entries whose
// value is nil, a nil pointer or an empty string are left out of the URL.
type Params map[string]any

// Encode validates every value and returns the query string values.
func (p Params) Encode() (url.Values, error) {
	values := url.Values{}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		vs, err := encodeValue(k, p[k])
		if err != nil {
			return nil, err
		}
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return values, nil
}

func (p Params) has(key string) bool {
	vs, err := encodeValue(key, p[key])
	return err == nil && len(vs) > 0
}

// encodeValue returns nothing for unset values.
func encodeValue(key string, v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return []string{val}, nil
	case *string:
		if val == nil || *val == "" {
			return nil, nil
		}
		return []string{*val}, nil
	case bool:
		return []string{strconv.FormatBool(val)}, nil
	case *bool:
		if val == nil {
			return nil, nil
		}
		return []string{strconv.FormatBool(*val)}, nil
	case int:
		return []string{strconv.Itoa(val)}, nil
	case *int:
		if val == nil {
			return nil, nil
		}
		return []string{strconv.Itoa(*val)}, nil
	case int64:
		return []string{strconv.FormatInt(val, 10)}, nil
	case uint64:
		return []string{strconv.FormatUint(val, 10)}, nil
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}, nil
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, invalidParams("%s has unsupported type %T", key, v)
	}
}

// ParseBool turns loosely typed input (flags, config values) into an
// optional boolean. nil and "" mean unset. Anything that is not a boolean
// is rejected.
func ParseBool(name string, v any) (*bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &val, nil
	case *bool:
		return val, nil
	case string:
		if val == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, invalidParams("%s is invalid (expected bool but got %q)", name, val)
		}
		return &b, nil
	default:
		return nil, invalidParams("%s is invalid (expected bool but got %T)", name, v)
	}
}

// Bool returns a pointer to b, for optional boolean arguments.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for optional integer arguments.
func Int(i int) *int { return &i }
