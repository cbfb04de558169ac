package reconmatch

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

var (
	corporateSuffixes = []string{" LLC", " INC.", " INC", " LTD.", " LTD", " CORP.", " CORP"}
	nonAlphanumeric   = regexp.MustCompile(`[^A-Z0-9]`)
	payerNoisePattern = regexp.MustCompile(`\b(DES|WIRE TYPE|ID|CO ID|ENTRY CLASS)\s*:.*$`)
)

// NormalizeAgencyName uppercases, strips a trailing corporate suffix, and
// removes non-alphanumeric characters, matching the normalization used on
// both sides of the payer-name comparison (§4.4).
func NormalizeAgencyName(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// CleanPayerField strips bank free-text noise (DES:, WIRE TYPE:, etc.)
// from a raw infoToAccountOwner-style field before normalization.
func CleanPayerField(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = payerNoisePattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// AliasTable maps a canonical agency name to its accepted aliases,
// sourced from the AGENCY_ALIASES configuration key (§6).
type AliasTable map[string][]string

// Matches reports whether candidate is a configured alias of canonical
// (or vice versa), case/format-insensitively.
func (t AliasTable) Matches(canonical, candidate string) bool {
	nCanonical := NormalizeAgencyName(canonical)
	nCandidate := NormalizeAgencyName(candidate)
	for name, aliases := range t {
		nName := NormalizeAgencyName(name)
		if nName != nCanonical && nName != nCandidate {
			continue
		}
		for _, alias := range aliases {
			nAlias := NormalizeAgencyName(alias)
			if nAlias == nCandidate || nAlias == nCanonical {
				return true
			}
		}
	}
	return false
}

// PayerNameScore scores the similarity of a payer string (cleaned free
// text from the inbound-funding source) against an agency name (from the
// remittance email), per the graduated scheme in §4.4:
//  1. exact match after normalization -> 1.0
//  2. alias-table hit -> 0.9
//  3. substring containment -> 0.6
//  4. the higher of normalized Levenshtein and Jaro-Winkler similarity
//     otherwise
func PayerNameScore(payer, agency string, aliases AliasTable) float64 {
	normPayer := NormalizeAgencyName(CleanPayerField(payer))
	normAgency := NormalizeAgencyName(agency)

	if normPayer == "" || normAgency == "" {
		return 0.0
	}
	if normPayer == normAgency {
		return 1.0
	}
	if aliases.Matches(normAgency, normPayer) {
		return 0.9
	}
	if strings.Contains(normPayer, normAgency) || strings.Contains(normAgency, normPayer) {
		return 0.6
	}
	return editDistanceSimilarity(normPayer, normAgency)
}

// TextSimilarity exposes the edit-distance blend standalone for
// find_potential_duplicates()-style lexical comparisons (§12 supplement)
// that are not a payer-vs-agency comparison — e.g. the subject lines of
// two remittance emails from the same sender.
func TextSimilarity(a, b string) float64 {
	return editDistanceSimilarity(NormalizeAgencyName(a), NormalizeAgencyName(b))
}

// editDistanceSimilarity blends a normalized Levenshtein similarity with
// Jaro-Winkler (better on short, transposition-heavy tokens like acronyms)
// and takes the higher of the two, so an abbreviation like "OMNICOM" vs
// "OMNICOM MEDIA GROUP" is not penalized purely for length.
func editDistanceSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0.0
	}
	levSim := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if levSim < 0 {
		levSim = 0
	}
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	if jw > levSim {
		return jw
	}
	return levSim
}
