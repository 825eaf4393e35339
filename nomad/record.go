package nomad

import (
	"encoding/json"
	"strconv"
)

// Record is a generic API object (job, node, allocation, token, ...).
type Record map[string]any

// ID returns the "ID" field.
func (r Record) ID() string { return r.String("ID") }

// Name returns the "Name" field.
func (r Record) Name() string { return r.String("Name") }

// String safely extracts a string field, returning "" if absent.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Int extracts a numeric field, returning 0 if absent or not a number.
func (r Record) Int(field string) int {
	return toInt(r[field])
}

// Bool safely extracts a bool field, returning false if absent.
func (r Record) Bool(field string) bool {
	if v, ok := r[field].(bool); ok {
		return v
	}
	return false
}

// Map returns a nested object field as a Record, or nil.
func (r Record) Map(field string) Record {
	switch v := r[field].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	}
	return nil
}

// Matches reports whether the record is identified by id, through either
// its ID or its Name.
func (r Record) Matches(id string) bool {
	return id != "" && (r.ID() == id || r.Name() == id)
}

// toInt converts the numeric representations a decoded body may hold.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int(f)
		}
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// Normalize returns a copy of v with every json.Number replaced by an
// int64, or a float64 when it has a fraction. Encoders other than
// encoding/json would otherwise write numbers as strings.
func Normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case Record:
		return Normalize(map[string]any(val))
	case []Record:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}
