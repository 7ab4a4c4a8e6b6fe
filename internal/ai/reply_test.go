package ai

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", raw: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "inline backticks", raw: "`{\"a\":1}`", want: `{"a":1}`},
		{name: "surrounding space", raw: "  \n```json {\"a\":1} ```  ", want: `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.raw); got != tc.want {
				t.Fatalf("ExtractJSON(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := map[string]string{
		`Sure! {"allowed": true} hope that helps`: `{"allowed": true}`,
		"{\"a\": {\"b\": 1}}\n":                   `{"a": {"b": 1}}`,
		"no json here":                            "",
		"} backwards {":                           "",
	}

	for raw, want := range cases {
		if got := FirstJSONObject(raw); got != want {
			t.Fatalf("FirstJSONObject(%q) = %q, want %q", raw, got, want)
		}
	}
}
