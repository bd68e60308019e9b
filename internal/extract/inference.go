package extract

import (
	"regexp"
	"strings"
)

type levelPattern struct {
	re    *regexp.Regexp
	level string
}

var (
	yearsPattern = regexp.MustCompile(`(?i)(\d{1,2}(?:\s*(?:-|–|to)\s*\d{1,2})?(?:\s*\+)?)\s*years?(?:\s+of)?(?:\s+[a-z/-]+){0,3}\s+experience`)
	dashPattern  = regexp.MustCompile(`\s*(?:-|–)\s*`)

	seniorityPatterns = []levelPattern{
		{regexp.MustCompile(`(?i)\b(?:senior|sr\.?|lead|principal|staff)\b`), "Senior"},
		{regexp.MustCompile(`(?i)\b(?:entry[- ]level|junior|jr\.?|new grad(?:uate)?|intern(?:ship)?)\b`), "Entry Level"},
		{regexp.MustCompile(`(?i)\b(?:mid[- ]level|intermediate|mid[- ]senior)\b`), "Mid Level"},
	}
	rolePatterns = []levelPattern{
		{regexp.MustCompile(`(?i)\b(?:director|vp|vice president|head of)\b`), "Director"},
		{regexp.MustCompile(`(?i)\bmanager\b`), "Manager"},
	}

	educationPatterns = []levelPattern{
		{regexp.MustCompile(`(?i)\b(?:ph\.?d\.?|doctorate|doctoral)(?:\W|$)`), "Doctorate"},
		{regexp.MustCompile(`(?i)\b(?:master'?s?(?:\s+degree)?|mba|m\.s\.|msc)(?:\W|$)`), "Master's Degree"},
		{regexp.MustCompile(`(?i)\b(?:bachelor'?s?(?:\s+degree)?|b\.s\.|b\.a\.|bs/ba|bsc|undergraduate degree)(?:\W|$)`), "Bachelor's Degree"},
		{regexp.MustCompile(`(?i)\bassociate'?s?\s+degree\b`), "Associate Degree"},
		{regexp.MustCompile(`(?i)\b(?:high school|ged)\b`), "High School"},
	}
)

// InferExperienceLevel guesses the experience level from free text. A
// years-of-experience phrase wins ("3-5 years"), then seniority vocabulary,
// then role vocabulary. It returns "" when nothing matches.
func InferExperienceLevel(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if m := yearsPattern.FindStringSubmatch(text); m != nil {
		n := dashPattern.ReplaceAllString(strings.ToLower(m[1]), "-")
		n = strings.ReplaceAll(n, " ", "")
		n = strings.ReplaceAll(n, "to", " to ")
		if n == "1" {
			return "1 year"
		}
		return n + " years"
	}
	for _, group := range [][]levelPattern{seniorityPatterns, rolePatterns} {
		if level := earliest(group, text); level != "" {
			return level
		}
	}
	return ""
}

// InferEducationLevel returns the degree mentioned first in text, or "".
func InferEducationLevel(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return earliest(educationPatterns, text)
}

func earliest(patterns []levelPattern, text string) string {
	best, bestPos := "", -1
	for _, p := range patterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestPos == -1 || loc[0] < bestPos {
			best, bestPos = p.level, loc[0]
		}
	}
	return best
}
