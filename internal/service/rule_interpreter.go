package service

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"rentsearch/internal/model"
	"rentsearch/internal/utils"
)

const amountPattern = `(\d+(?:,\d{3})*(?:\.\d+)?)`

var (
	// Upper-bound cue followed by an amount: "under $2,000", "budget of 25k", "for 1800/month"
	boundedPrice = regexp.MustCompile(`(?i)\b(?:under|below|less than|up ?to|max(?:imum)?|budget(?: of)?|within|for|at most)\s*\$?\s*` +
		amountPattern + `(?:\s*(k)\b)?(?:\s*(?:/\s*|per\s+)(?:month|mo)\b)?`)
	dollarPrice  = regexp.MustCompile(`\$\s*` + amountPattern + `(?:\s*([kK])\b)?`)
	kPrice       = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(k)\b`)
	barePrice    = regexp.MustCompile(`\b(\d{3,}(?:,\d{3})*(?:\.\d+)?)\b`)
	roomFollowUp = regexp.MustCompile(`(?i)^\s*[- ]?\s*(?:bhk|bed|br\b|bd\b|bath)`)

	bhkPattern      = regexp.MustCompile(`(?i)\b(\d+)\s*bhk\b`)
	bedroomPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*[- ]?\s*(?:bed(?:room)?s?|br|bd)\b`)
	studioPattern   = regexp.MustCompile(`(?i)\bstudio\b`)
	bathroomPattern = regexp.MustCompile(`(?i)\b(\d+)\s*[- ]?\s*bath(?:room)?s?\b`)

	locationCue   = regexp.MustCompile(`(?i)\b(?:near|in|at|around)\s+`)
	locationToken = regexp.MustCompile(`\p{L}[\p{L}'&-]*|\S`)

	// Trailing cue words and separators that introduced a removed clause
	danglingCue = regexp.MustCompile(`(?i)(?:\b(?:around|about|approx(?:imately)?|near|in|at|under|below|within|for|budget(?: of)?|max(?:imum)?|up ?to|less than)\s*|[,;:\s])+$`)

	// Separators left at the start of text following a removed clause
	leadingSeparator = regexp.MustCompile(`^[,;:\s]+`)
)

// Words that end a place-name phrase
var locationStops = map[string]bool{
	"under": true, "below": true, "less": true, "up": true, "upto": true, "max": true, "maximum": true,
	"budget": true, "within": true, "for": true, "with": true, "and": true, "or": true, "near": true,
	"in": true, "at": true, "around": true, "that": true, "which": true, "having": true, "has": true,
	"per": true, "from": true, "close": true, "by": true, "apartment": true, "apartments": true,
	"flat": true, "flats": true, "house": true, "room": true, "rooms": true, "studio": true,
}

// Leading words that mark a descriptive phrase rather than a place
var locationRejects = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true, "this": true, "good": true, "nice": true,
	"quiet": true, "safe": true, "walking": true, "budget": true, "total": true, "mind": true,
}

const (
	maxLowercaseLocationWords = 3
	// "for 2 people" is not a budget
	minCuedPrice = 100
)

// RuleInterpreter extracts constraints with local pattern heuristics.
// It needs no external service and is deterministic.
type RuleInterpreter struct{}

// NewRuleInterpreter creates a heuristic interpreter
func NewRuleInterpreter() *RuleInterpreter {
	return &RuleInterpreter{}
}

func (r *RuleInterpreter) Name() string { return "rule" }

// Extract implements TextInterpreter
func (r *RuleInterpreter) Extract(_ context.Context, raw string) (*model.ParsedQuery, error) {
	q := &model.ParsedQuery{}
	var cut [][2]int

	if price, span, ok := extractPrice(raw); ok {
		q.MaxPrice = &price
		cut = append(cut, span)
	}

	if loc, span, ok := extractLocation(raw); ok {
		q.Location = &loc
		cut = append(cut, span)
	}

	if m := bhkPattern.FindStringSubmatch(raw); m != nil {
		q.Bedrooms = atoiPtr(m[1])
	} else if m := bedroomPattern.FindStringSubmatch(raw); m != nil {
		q.Bedrooms = atoiPtr(m[1])
	} else if studioPattern.MatchString(raw) {
		zero := 0
		q.Bedrooms = &zero
	}
	if m := bathroomPattern.FindStringSubmatch(raw); m != nil {
		q.Bathrooms = atoiPtr(m[1])
	}

	q.Amenities = utils.DetectAmenities(raw)
	q.FreeText = removeSpans(raw, cut)
	return q, nil
}

// extractPrice returns the first upper-bound-like amount and the clause it spans
func extractPrice(raw string) (float64, [2]int, bool) {
	for _, m := range boundedPrice.FindAllStringSubmatchIndex(raw, -1) {
		if roomFollowUp.MatchString(raw[m[3]:]) {
			continue
		}
		if v, ok := parseAmount(raw[m[2]:m[3]], m[4] >= 0); ok && v >= minCuedPrice {
			return v, [2]int{m[0], m[1]}, true
		}
	}

	if m := dollarPrice.FindStringSubmatchIndex(raw); m != nil {
		if v, ok := parseAmount(raw[m[2]:m[3]], m[4] >= 0); ok {
			return v, [2]int{m[0], m[1]}, true
		}
	}
	if m := kPrice.FindStringSubmatchIndex(raw); m != nil {
		if v, ok := parseAmount(raw[m[2]:m[3]], true); ok {
			return v, [2]int{m[0], m[1]}, true
		}
	}
	for _, m := range barePrice.FindAllStringSubmatchIndex(raw, -1) {
		if roomFollowUp.MatchString(raw[m[1]:]) {
			continue
		}
		if v, ok := parseAmount(raw[m[2]:m[3]], false); ok {
			return v, [2]int{m[0], m[1]}, true
		}
	}
	return 0, [2]int{}, false
}

func parseAmount(s string, thousands bool) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		v *= 1000
	}
	return v, true
}

type locationCandidate struct {
	phrase      string
	span        [2]int
	words       int
	capitalised bool
}

// extractLocation picks the most specific place-like phrase following a
// location cue. Capitalised phrases win over lowercase ones, longer over shorter.
func extractLocation(raw string) (string, [2]int, bool) {
	var best *locationCandidate
	for _, cue := range locationCue.FindAllStringIndex(raw, -1) {
		c, ok := readLocation(raw, cue[0], cue[1])
		if !ok {
			continue
		}
		if best == nil ||
			(c.capitalised && !best.capitalised) ||
			(c.capitalised == best.capitalised && c.words > best.words) {
			best = &c
		}
	}
	if best == nil {
		return "", [2]int{}, false
	}
	return best.phrase, best.span, true
}

func readLocation(raw string, cueStart, phraseStart int) (locationCandidate, bool) {
	rest := raw[phraseStart:]
	var tokens [][2]int
	for _, t := range locationToken.FindAllStringIndex(rest, -1) {
		word := rest[t[0]:t[1]]
		if !isWord(word) || locationStops[strings.ToLower(word)] {
			break
		}
		tokens = append(tokens, [2]int{t[0], t[1]})
	}
	if len(tokens) == 0 {
		return locationCandidate{}, false
	}

	// A capitalised phrase ends at its first lowercase word
	capitalised := startsUpper(rest[tokens[0][0]:tokens[0][1]])
	if capitalised {
		n := 1
		for n < len(tokens) && startsUpper(rest[tokens[n][0]:tokens[n][1]]) {
			n++
		}
		tokens = tokens[:n]
	} else {
		if locationRejects[strings.ToLower(rest[tokens[0][0]:tokens[0][1]])] {
			return locationCandidate{}, false
		}
		if len(tokens) > maxLowercaseLocationWords {
			tokens = tokens[:maxLowercaseLocationWords]
		}
	}

	end := tokens[len(tokens)-1][1]
	return locationCandidate{
		phrase:      rest[tokens[0][0]:end],
		span:        [2]int{cueStart, phraseStart + end},
		words:       len(tokens),
		capitalised: capitalised,
	}, true
}

func isWord(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// removeSpans deletes the given byte ranges from s and collapses whitespace.
// Cue words and separators left dangling next to a removed clause go with it.
func removeSpans(s string, spans [][2]int) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	var parts []string
	pos := 0
	for _, sp := range spans {
		if sp[0] > pos {
			piece := s[pos:sp[0]]
			if pos > 0 {
				piece = leadingSeparator.ReplaceAllString(piece, "")
			}
			parts = append(parts, danglingCue.ReplaceAllString(piece, ""))
		}
		if sp[1] > pos {
			pos = sp[1]
		}
	}
	if pos < len(s) {
		piece := s[pos:]
		if pos > 0 {
			piece = leadingSeparator.ReplaceAllString(piece, "")
		}
		parts = append(parts, piece)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
