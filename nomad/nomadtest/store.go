package nomadtest

import (
	"sort"
	"sync"
)

// object is a decoded JSON object as the API would serve it.
type object = map[string]any

// store is an in-memory thread-safe store keyed by object identity.
type store struct {
	mu    sync.RWMutex
	items map[string]object
}

func newStore() *store {
	return &store{items: make(map[string]object)}
}

// Get returns a copy of the object, or nil if not found.
func (s *store) Get(id string) object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.items[id]
	if !ok {
		return nil
	}
	return clone(obj)
}

// Put inserts or replaces an object.
func (s *store) Put(id string, obj object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = clone(obj)
}

// Update applies fn to the stored object under lock. It returns false when
// the object does not exist.
func (s *store) Update(id string, fn func(object)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.items[id]
	if !ok {
		return false
	}
	fn(obj)
	return true
}

// Delete removes an object by ID.
func (s *store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// List returns copies of all objects accepted by keep, sorted by ID.
func (s *store) List(keep func(object) bool) []object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]object, 0, len(ids))
	for _, id := range ids {
		obj := s.items[id]
		if keep == nil || keep(obj) {
			result = append(result, clone(obj))
		}
	}
	return result
}

// clone copies an object deeply enough that callers cannot alias stored
// maps or slices.
func clone(obj object) object {
	if obj == nil {
		return nil
	}
	out := make(object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return clone(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []object:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = clone(e)
		}
		return out
	}
	return v
}

func stringField(obj object, field string) string {
	if v, ok := obj[field].(string); ok {
		return v
	}
	return ""
}

func boolField(obj object, field string) bool {
	if v, ok := obj[field].(bool); ok {
		return v
	}
	return false
}

func intField(obj object, field string) int {
	switch n := obj[field].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	}
	return 0
}
