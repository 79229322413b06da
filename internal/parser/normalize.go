package parser

import (
	"regexp"
	"strings"
)

// noiseTokens are accessibility labels and OCR artifacts that never carry offer data.
var noiseTokens = []string{
	"Profile image of the rider",
	"Double tap to activate",
	"Trip details button",
	"Open navigation",
	"Loading...",
	"Loading",
}

// misreads maps fixed-keyword OCR substitution errors to their corrected spelling.
var misreads = strings.NewReplacer(
	"De1ivery", "Delivery",
	"Deiivery", "Delivery",
	"tota1", "total",
	"Tota1", "Total",
	"Acoept", "Accept",
	"Aocept", "Accept",
	"Rejeot", "Reject",
	"Matoh", "Match",
)

var (
	noiseRe      = buildNoiseRe(noiseTokens)
	horizontalWS = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
)

func buildNoiseRe(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// Normalize cleans raw OCR or accessibility text. It is total and idempotent.
func Normalize(raw string) string {
	s := raw
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = noiseRe.ReplaceAllString(s, "")
	s = misreads.Replace(s)
	s = horizontalWS.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
