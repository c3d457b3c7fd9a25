package stock

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := map[string]string{
		"1234 abc":  "1234ABC",
		" 1234ABC ": "1234ABC",
		"12 34 ABC": "1234ABC",
		"1234\tABC": "1234ABC",
		"":          "",
		"   ":       "",
	}
	for in, want := range cases {
		if got := NormalizePlate(in); got != want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", in, got, want)
		}
	}
}
