package harvest

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ASPIRIN   trial ", "aspirin trial"},
		{"Breast\tCancer\nBRCA1", "breast cancer brca1"},
		{"", ""},
		{"   ", ""},
		{"egfr", "egfr"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if twice := Normalize(Normalize(tt.in)); twice != Normalize(tt.in) {
			t.Fatalf("Normalize not idempotent for %q: %q", tt.in, twice)
		}
	}
}

func TestCollapseKeepsCase(t *testing.T) {
	if got := Collapse("  asthma[mesh]   AND  2020[PDAT] "); got != "asthma[mesh] AND 2020[PDAT]" {
		t.Fatalf("unexpected %q", got)
	}
}
