// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"regexp"
	"strconv"
	"strings"
)

var emergencyKeywords = []string{
	"lost", "stolen", "accident", "emergency", "ambulance",
	"police", "hospital", "robbed", "injured",
}

// IsEmergencyQuery reports whether text mentions a traveller in trouble.
func IsEmergencyQuery(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, w := range words {
		for _, k := range emergencyKeywords {
			if w == k {
				return true
			}
		}
	}
	return false
}

var (
	compareAnd = regexp.MustCompile(`(?i)compare\s+(.+?)\s+(?:and|with|to)\s+(.+)`)
	versus     = regexp.MustCompile(`(?i)(.+?)\s+(?:vs\.?|versus)\s+(.+)`)
	budgetNum  = regexp.MustCompile(`(\d[\d,]*)`)
)

// ExtractComparisonPlaces finds the two places in "Compare A and B" or
// "A vs B" phrasings.
func ExtractComparisonPlaces(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	for _, re := range []*regexp.Regexp{compareAnd, versus} {
		if m := re.FindStringSubmatch(text); m != nil {
			a, b := cleanPlace(m[1]), cleanPlace(m[2])
			if a != "" && b != "" {
				return a, b, true
			}
		}
	}
	return "", "", false
}

func cleanPlace(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "?.!,")
	return strings.TrimSpace(s)
}

// ExtractNumericBudget returns the first amount mentioned in a message that
// talks about a budget, e.g. 50000 for "My budget is 50000 INR".
func ExtractNumericBudget(text string) (int, bool) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "budget") && !strings.Contains(lower, "spend") {
		return 0, false
	}
	m := budgetNum.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
