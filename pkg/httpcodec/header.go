package httpcodec

import "strings"

// field is one name/value pair as it appeared on the wire (or as set by
// code), in original casing.
type field struct {
	name  string
	value string
}

// Headers is an ordered, case-insensitive multi-map from header name to a
// sequence of values. Insertion order is preserved both across distinct
// names and across repeated values for the same name, matching spec §3's
// Headers entity. Lookups are case-insensitive; Get is a first-value
// shortcut over Values.
//
// Grounded on the teacher's inline fixed-array Header (http11.Header):
// this keeps the same "case-insensitive name, ordered values, first-value
// shortcut" contract but drops the fixed-capacity array trick in favor of
// a plain slice, since the didactic goal here is clarity over a
// zero-allocation micro-benchmark.
type Headers struct {
	fields []field
}

// NewHeaders returns an empty Headers value.
func NewHeaders() *Headers {
	return &Headers{}
}

func isValidHeaderByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	default:
		return false
	}
}

// ValidName reports whether name satisfies the Headers invariant: ASCII
// letters, digits, '-' and '_' only.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isValidHeaderByte(name[i]) {
			return false
		}
	}
	return true
}

// Add appends value to the ordered sequence for name, preserving any
// existing values. It does not validate name; callers parsing untrusted
// wire data should check ValidName first.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, field{name: name, value: value})
}

// Set replaces all existing values for name with a single value.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every value stored under name (case-insensitive).
func (h *Headers) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Get returns the first value stored for name, or "" if absent.
func (h *Headers) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value
		}
	}
	return ""
}

// Values returns every value stored for name, in insertion order. The
// returned slice is a copy; mutating it does not affect h.
func (h *Headers) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether any value is stored for name.
func (h *Headers) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return true
		}
	}
	return false
}

// Names returns the distinct header names in first-seen order.
func (h *Headers) Names() []string {
	seen := make(map[string]bool, len(h.fields))
	var out []string
	for _, f := range h.fields {
		key := strings.ToLower(f.name)
		if !seen[key] {
			seen[key] = true
			out = append(out, f.name)
		}
	}
	return out
}

// Each calls fn once per stored (name, value) pair in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Len returns the total number of stored values (not distinct names).
func (h *Headers) Len() int {
	return len(h.fields)
}

// Clone returns a deep copy of h.
func (h *Headers) Clone() *Headers {
	if h == nil {
		return NewHeaders()
	}
	out := &Headers{fields: make([]field, len(h.fields))}
	copy(out.fields, h.fields)
	return out
}

// reset clears h for reuse from a pool.
func (h *Headers) reset() {
	h.fields = h.fields[:0]
}
