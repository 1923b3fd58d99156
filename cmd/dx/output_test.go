package main

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 50, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a much longer string that needs cutting down", 20, "a much longer str..."},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestYes(t *testing.T) {
	if got := yes(true); got != "yes" {
		t.Errorf("yes(true) = %q", got)
	}
	if got := yes(false); got != "" {
		t.Errorf("yes(false) = %q", got)
	}
}

func TestDefaultExportName(t *testing.T) {
	tests := []struct {
		scope  string
		format string
		want   string
	}{
		{"project:prj-1", "png", "project-prj-1.png"},
		{"org:org-9", "html", "org-org-9.html"},
	}
	for _, tc := range tests {
		if got := defaultExportName(tc.scope, tc.format); got != tc.want {
			t.Errorf("defaultExportName(%q, %q) = %q, want %q", tc.scope, tc.format, got, tc.want)
		}
	}
}
