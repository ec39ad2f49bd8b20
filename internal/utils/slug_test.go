package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Toyota RAV4 2022", "toyota-rav4-2022"},
		{"  Honda CR-V  ", "honda-cr-v"},
		{"Buy & Drive", "buy-and-drive"},
		{"2x1 / Fin de Año", "2x1-fin-de-a-o"},
		{"O'Brien Motors", "obrien-motors"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
