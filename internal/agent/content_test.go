package agent

import "testing"

func TestParseContent(t *testing.T) {
	for _, tc := range []struct {
		name     string
		raw      string
		wantText string
		wantRefs int
		fallback bool
	}{
		{
			name:     "object form",
			raw:      `{"text": "Upgrade lodash.", "references": ["CVE-2021-23337", "lodash"]}`,
			wantText: "Upgrade lodash.",
			wantRefs: 2,
		},
		{
			name:     "json encoded string",
			raw:      `"plain answer inside a json string"`,
			wantText: "plain answer inside a json string",
		},
		{
			name:     "plain prose",
			raw:      "No critical issues in this scan.",
			wantText: "No critical issues in this scan.",
		},
		{
			name:     "object without text field",
			raw:      `{"answer": "wrong shape"}`,
			wantText: `{"answer": "wrong shape"}`,
			fallback: true,
		},
		{
			name:     "malformed object",
			raw:      `{"text": "truncated`,
			wantText: `{"text": "truncated`,
			fallback: true,
		},
		{
			name:     "malformed quoted string",
			raw:      `"unterminated`,
			wantText: `"unterminated`,
			fallback: true,
		},
		{
			name:     "leading whitespace object",
			raw:      "  \n\t" + `{"text": "indented"}`,
			wantText: "indented",
		},
		{
			name:     "empty",
			raw:      "",
			wantText: "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseContent(tc.raw)
			if got.Text != tc.wantText {
				t.Errorf("ParseContent(%q).Text = %q, want %q", tc.raw, got.Text, tc.wantText)
			}
			if len(got.References) != tc.wantRefs {
				t.Errorf("ParseContent(%q) references = %d, want %d", tc.raw, len(got.References), tc.wantRefs)
			}
			if got.Fallback != tc.fallback {
				t.Errorf("ParseContent(%q).Fallback = %v, want %v", tc.raw, got.Fallback, tc.fallback)
			}
		})
	}
}

func TestParseContent_DoesNotRecurse(t *testing.T) {
	// A JSON string whose payload is itself JSON stays one level deep.
	raw := `"{\"text\": \"inner\"}"`
	got := ParseContent(raw)
	if got.Text != `{"text": "inner"}` {
		t.Errorf("ParseContent(%q).Text = %q, want the inner JSON verbatim", raw, got.Text)
	}
}
