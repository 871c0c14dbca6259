package ranking

import (
	"math"
	"sort"
)

// RatedRanking is one rater's full-text ranking plus its already-parsed
// label order, matching conversation.PerModelRanking's shape without
// importing that package (keeps ranking dependency-free and testable in
// isolation).
type RatedRanking struct {
	Model         string
	ParsedRanking []string
}

// AggregateRow is one leaderboard row.
type AggregateRow struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Aggregate computes the mean-rank leaderboard from stage-2 rankings and
// the LabelMap used to render them.
//
// For each rater, each label's first occurrence (subsequent repeats of the
// same label are ignored, matching the parser's tie-break rule) contributes
// its 1-based position to that label's resolved model. Models with zero
// contributing positions are excluded. Rows are sorted by
// (average_rank ASC, rankings_count DESC, model ASC), resolving the
// original implementation's single-key unstable sort.
func Aggregate(rankings []RatedRanking, labelMap *LabelMap) []AggregateRow {
	positions := make(map[string][]int)

	for _, r := range rankings {
		seen := make(map[string]bool, len(r.ParsedRanking))
		for pos, label := range r.ParsedRanking {
			if seen[label] {
				continue
			}
			seen[label] = true

			model, ok := labelMap.Model(label)
			if !ok {
				continue
			}
			positions[model] = append(positions[model], pos+1)
		}
	}

	rows := make([]AggregateRow, 0, len(positions))
	for model, ps := range positions {
		if len(ps) == 0 {
			continue
		}
		sum := 0
		for _, p := range ps {
			sum += p
		}
		avg := roundTo2(float64(sum) / float64(len(ps)))
		rows = append(rows, AggregateRow{
			Model:         model,
			AverageRank:   avg,
			RankingsCount: len(ps),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AverageRank != rows[j].AverageRank {
			return rows[i].AverageRank < rows[j].AverageRank
		}
		if rows[i].RankingsCount != rows[j].RankingsCount {
			return rows[i].RankingsCount > rows[j].RankingsCount
		}
		return rows[i].Model < rows[j].Model
	})

	return rows
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
