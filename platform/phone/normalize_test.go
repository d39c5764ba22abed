package phone

import "testing"

func TestNormalizeE164InRegion(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"already e164", "+31612345678", "NL", "+31612345678"},
		{"national format", "06 12345678", "NL", "+31612345678"},
		{"double zero prefix", "0031612345678", "NL", "+31612345678"},
		{"blank", "   ", "NL", ""},
		{"garbage is returned trimmed", " not-a-number ", "NL", "not-a-number"},
		{"empty region falls back", "06 12345678", "", "+31612345678"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeE164InRegion(tc.input, tc.region)
			if got != tc.want {
				t.Fatalf("NormalizeE164InRegion(%q, %q) = %q, want %q", tc.input, tc.region, got, tc.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("+31612345678", "") {
		t.Fatalf("expected Dutch mobile number to be valid")
	}
	if IsValid("12", "NL") {
		t.Fatalf("expected short number to be invalid")
	}
}
