package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	cases := []struct {
		s    string
		want int64
		ok   bool
	}{
		{"7", 7, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"9223372036854775808", 0, false}, // overflow
	}
	for _, tc := range cases {
		got, ok := ParseID(tc.s)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseID(%q) = (%d,%v); want (%d,%v)", tc.s, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 1, 10) != 1 || Clamp(50, 1, 10) != 10 || Clamp(5, 1, 10) != 5 {
		t.Fatalf("Clamp bounds wrong")
	}
}
