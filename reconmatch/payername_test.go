package reconmatch

import "testing"

func TestPayerNameScore(t *testing.T) {
	aliases := AliasTable{
		"Omnicom Media Group": {"OMG", "Omnicom Media"},
	}

	cases := []struct {
		name   string
		payer  string
		agency string
		want   float64
	}{
		{"exact after normalization", "OMNICOM MEDIA GROUP", "Omnicom Media Group", 1.0},
		{"alias hit", "OMG", "Omnicom Media Group", 0.9},
		{"substring containment", "OMNICOM MEDIA GROUP ASIA", "Omnicom Media Group", 0.6},
		{"empty payer", "", "Omnicom Media Group", 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PayerNameScore(tc.payer, tc.agency, aliases)
			if got != tc.want {
				t.Fatalf("PayerNameScore(%q, %q) = %v, want %v", tc.payer, tc.agency, got, tc.want)
			}
		})
	}
}

func TestCleanPayerField_StripsBankNoise(t *testing.T) {
	raw := "OMNICOM MEDIA GROUP DES:PAYROLL ID:123456 WIRE TYPE:CTX"
	got := CleanPayerField(raw)
	if got != "OMNICOM MEDIA GROUP" {
		t.Fatalf("CleanPayerField(%q) = %q, want %q", raw, got, "OMNICOM MEDIA GROUP")
	}
}

func TestNormalizeAgencyName_StripsSuffixAndPunctuation(t *testing.T) {
	got := NormalizeAgencyName("Omnicom Media Group, LLC")
	want := "OMNICOMMEDIAGROUP"
	if got != want {
		t.Fatalf("NormalizeAgencyName = %q, want %q", got, want)
	}
}
