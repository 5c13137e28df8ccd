package router

import "testing"

func TestCompilePatternRejectsRelativePath(t *testing.T) {
	if _, err := compilePattern("users/{id}"); err == nil {
		t.Errorf("expected error for pattern missing leading slash")
	}
}

func TestCompilePatternRejectsDuplicateParam(t *testing.T) {
	if _, err := compilePattern("/{id}/{id}"); err == nil {
		t.Errorf("expected error for duplicate parameter name")
	}
}

func TestCompilePatternStaticExactMatch(t *testing.T) {
	p, err := compilePattern("/health")
	if err != nil {
		t.Fatalf("compilePattern error: %v", err)
	}
	if _, ok := p.match("/health"); !ok {
		t.Errorf("expected /health to match")
	}
	if _, ok := p.match("/health/extra"); ok {
		t.Errorf("expected /health/extra not to match")
	}
}

func TestCompilePatternMultipleParams(t *testing.T) {
	p, err := compilePattern("/orgs/{org}/repos/{repo}")
	if err != nil {
		t.Fatalf("compilePattern error: %v", err)
	}
	params, ok := p.match("/orgs/acme/repos/widget")
	if !ok {
		t.Fatalf("expected match")
	}
	if params["org"] != "acme" || params["repo"] != "widget" {
		t.Errorf("params = %v, want org=acme repo=widget", params)
	}
}
