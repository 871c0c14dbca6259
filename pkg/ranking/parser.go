// Package ranking parses free-text stage-2 rankings into ordered label
// lists and aggregates them into a mean-rank leaderboard.
package ranking

import (
	"regexp"
	"strings"
)

const finalRankingMarker = "FINAL RANKING:"

var (
	numberedResponsePattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	responsePattern         = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts an ordered list of labels from a rater's free text,
// following this 4-step algorithm:
//  1. If the marker is present, only the substring after its LAST occurrence
//     is considered.
//  2. Within that substring, numbered "N. Response X" matches win if any
//     are found.
//  3. Otherwise, bare "Response X" matches within that substring are used.
//  4. If the marker is absent entirely, fall back to bare matches over the
//     whole text.
//
// Duplicates are not removed here; the Aggregator counts only the first
// occurrence of each label per rater.
func ParseRanking(text string) []string {
	idx := strings.LastIndex(text, finalRankingMarker)
	if idx < 0 {
		return responsePattern.FindAllString(text, -1)
	}
	section := text[idx+len(finalRankingMarker):]

	if numbered := numberedResponsePattern.FindAllString(section, -1); len(numbered) > 0 {
		return extractLabels(numbered)
	}
	return responsePattern.FindAllString(section, -1)
}

// extractLabels pulls the "Response X" token out of each "N. Response X"
// match.
func extractLabels(numbered []string) []string {
	labels := make([]string, 0, len(numbered))
	for _, m := range numbered {
		if label := responsePattern.FindString(m); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
