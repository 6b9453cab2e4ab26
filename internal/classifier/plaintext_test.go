package classifier

import "testing"

func TestPlainText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain passes through", "  Great app, fast sync  ", "  Great app, fast sync  "},
		{"paragraphs", "<p>Great app.</p><p>Fast sync!</p>", "Great app. Fast sync!"},
		{"line breaks", "slow<br>broken<br/>again", "slow broken again"},
		{"scripts dropped", "<div>ok<script>alert(1)</script></div>", "ok"},
		{"entities decoded", "<b>love</b> &amp; hate", "love & hate"},
		{"comparison without tags", "3 < 5 stars", "3 < 5 stars"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PlainText(tc.in); got != tc.want {
				t.Fatalf("PlainText(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}
