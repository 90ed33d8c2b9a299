package coach

import "testing"

func TestFirstJSONArray(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare array",
			in:   `[1, 2, 3]`,
			want: `[1, 2, 3]`,
			ok:   true,
		},
		{
			name: "array inside prose",
			in:   "Sure, here you go:\n```json\n[{\"a\": 1}]\n```\nHope that helps!",
			want: `[{"a": 1}]`,
			ok:   true,
		},
		{
			name: "nested arrays",
			in:   `result: [[1, 2], [3]] trailing`,
			want: `[[1, 2], [3]]`,
			ok:   true,
		},
		{
			name: "bracket inside string literal",
			in:   `[{"quote": "see [figure 1] here"}]`,
			want: `[{"quote": "see [figure 1] here"}]`,
			ok:   true,
		},
		{
			name: "escaped quote inside string",
			in:   `[{"q": "she said \"no[\" loudly"}]`,
			want: `[{"q": "she said \"no[\" loudly"}]`,
			ok:   true,
		},
		{
			name: "no array",
			in:   "there is nothing structured here",
			ok:   false,
		},
		{
			name: "unterminated array",
			in:   `[1, 2, 3`,
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := firstJSONArray(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	in := "The rebuttal:\n{\"acknowledge\": \"fair {point}\", \"ask\": \"why?\"}\nGood luck!"
	want := `{"acknowledge": "fair {point}", "ask": "why?"}`

	got, ok := firstJSONObject(in)
	if !ok {
		t.Fatal("object not found")
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestClassifyGuidance(t *testing.T) {
	cases := map[string]string{
		"That's a strong buying signal, move now.":              GuidancePositive,
		"This is a red flag; the champion has no budget.":       GuidanceWarning,
		"Ask them to quantify the hours lost.":                  GuidanceAction,
		"They mentioned the weather and their upcoming offsite": GuidanceNeutral,
	}
	for in, want := range cases {
		if got := classifyGuidance(in); got != want {
			t.Errorf("classifyGuidance(%q) = %q, want %q", in, got, want)
		}
	}
}
