package httpcodec

import "testing"

func TestHeadersCaseInsensitiveGet(t *testing.T) {
	h := NewHeaders()
	h.Add("Content-Type", "text/plain")
	if got := h.Get("content-type"); got != "text/plain" {
		t.Errorf("Get(content-type) = %q, want text/plain", got)
	}
}

func TestHeadersPreservesCasingAndOrder(t *testing.T) {
	h := NewHeaders()
	h.Add("X-B", "2")
	h.Add("X-A", "1")
	names := h.Names()
	if len(names) != 2 || names[0] != "X-B" || names[1] != "X-A" {
		t.Errorf("Names() = %v, want [X-B X-A] preserving original casing and order", names)
	}
}

func TestHeadersMultiValue(t *testing.T) {
	h := NewHeaders()
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	vals := h.Values("set-cookie")
	if len(vals) != 2 || vals[0] != "a=1" || vals[1] != "b=2" {
		t.Errorf("Values = %v, want [a=1 b=2]", vals)
	}
}

func TestHeadersSetReplacesAll(t *testing.T) {
	h := NewHeaders()
	h.Add("X", "1")
	h.Add("X", "2")
	h.Set("X", "3")
	if vals := h.Values("x"); len(vals) != 1 || vals[0] != "3" {
		t.Errorf("Values after Set = %v, want [3]", vals)
	}
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"Content-Type": true,
		"X_Custom":     true,
		"":             false,
		"bad header":   false,
		"bad:header":   false,
	}
	for name, want := range cases {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}
