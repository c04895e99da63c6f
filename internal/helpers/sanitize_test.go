package helpers

import "testing"

func TestPlainText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"tags and scripts", `<p>Hello <strong>world</strong><script>alert('x')</script></p>`, "Hello world"},
		{"entities decoded", `Tom &amp; Jerry&#39;s <em>Guide</em>`, "Tom & Jerry's Guide"},
		{"whitespace collapsed", "  Breaking:\n\n  markets\trally  ", "Breaking: markets rally"},
		{"attributes dropped", `<a href="javascript:alert(1)" onclick="evil()">By Ada</a>`, "By Ada"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Fatalf("%s: PlainText(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}
