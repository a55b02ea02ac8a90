package llm

import "testing"

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"[1,2,3]", "[1,2,3]"},
	}
	for _, tc := range cases {
		if got := CleanJSON(tc.in); got != tc.want {
			t.Fatalf("CleanJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
