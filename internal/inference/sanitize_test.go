package inference

import "testing"

func TestStripControlTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		extra []string
		want  string
	}{
		{
			name: "removes mistral sentinels",
			in:   "<s>Today I went to the market.</s>",
			want: "Today I went to the market.",
		},
		{
			name: "removes chatml sentinels",
			in:   "Answer<|im_end|><|endoftext|>",
			want: "Answer",
		},
		{
			name:  "removes model specific specials",
			in:    "Dear diary[INST]",
			extra: []string{"[INST]", ""},
			want:  "Dear diary",
		},
		{
			name: "keeps whitespace and plain text",
			in:   "  All good. ",
			want: "  All good. ",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := StripControlTokens(tc.in, tc.extra...)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if HasControlTokens(got) {
				t.Fatalf("control tokens left in %q", got)
			}
		})
	}
}
