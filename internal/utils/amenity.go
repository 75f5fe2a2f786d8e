package utils

import (
	"regexp"
	"sort"
	"strings"
)

// amenityAliases maps a canonical amenity name to the phrases renters and
// listing owners use for it. Aliases are matched on word boundaries.
var amenityAliases = map[string][]string{
	"parking":          {"parking", "garage", "car park", "driveway"},
	"laundry":          {"laundry", "washer", "washing machine", "dryer", "washer/dryer"},
	"dishwasher":       {"dishwasher"},
	"air conditioning": {"air conditioning", "air conditioner", "aircon", "a/c", "ac"},
	"heating":          {"heating", "heat", "heater"},
	"gym":              {"gym", "gymnasium", "fitness center", "fitness"},
	"pool":             {"pool", "swimming pool"},
	"balcony":          {"balcony", "terrace", "patio", "deck"},
	"pet friendly":     {"pet friendly", "pets allowed", "pet-friendly", "pets ok"},
	"elevator":         {"elevator", "lift"},
	"wifi":             {"wifi", "wi-fi", "internet"},
	"doorman":          {"doorman", "concierge", "24-hour security"},
	"water":            {"water", "water included"},
	"fridge":           {"fridge", "refrigerator"},
}

type aliasPattern struct {
	canonical string
	re        *regexp.Regexp
}

var aliasPatterns = buildAliasPatterns()

func buildAliasPatterns() []aliasPattern {
	canon := make([]string, 0, len(amenityAliases))
	for k := range amenityAliases {
		canon = append(canon, k)
	}
	sort.Strings(canon)

	patterns := make([]aliasPattern, 0, len(canon))
	for _, c := range canon {
		quoted := make([]string, 0, len(amenityAliases[c]))
		for _, alias := range amenityAliases[c] {
			quoted = append(quoted, regexp.QuoteMeta(alias))
		}
		// longest aliases first so "swimming pool" wins over "pool"
		sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
		re := regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`)
		patterns = append(patterns, aliasPattern{canonical: c, re: re})
	}
	return patterns
}

// DetectAmenities returns the canonical amenities mentioned in text,
// ordered by where they first appear.
func DetectAmenities(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, p := range aliasPatterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{name: p.canonical, pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.name)
	}
	return names
}

// NormalizeAmenity maps an amenity phrase to its canonical name.
// Unknown phrases are returned lowercased and trimmed.
func NormalizeAmenity(amenity string) string {
	lower := strings.ToLower(strings.TrimSpace(amenity))
	for _, p := range aliasPatterns {
		if p.re.MatchString(lower) {
			return p.canonical
		}
	}
	return lower
}

// MatchAmenity reports whether wanted is offered by any of the listing's amenity terms
func MatchAmenity(wanted string, offered []string) bool {
	want := NormalizeAmenity(wanted)
	if want == "" {
		return false
	}
	for _, term := range offered {
		if NormalizeAmenity(term) == want {
			return true
		}
		if strings.Contains(strings.ToLower(term), want) {
			return true
		}
	}
	return false
}
