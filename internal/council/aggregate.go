package council

import (
	"math"
	"sort"
)

// AggregateRankings averages each model's 1-based position across all
// submissions. Unknown labels are ignored and models never ranked are left
// out. Lower is better; ties keep first-seen order.
func AggregateRankings(submissions []RankingSubmission, labels LabelMap) []AggregateRanking {
	type tally struct {
		sum   int
		count int
	}
	var order []string
	tallies := make(map[string]*tally)
	for _, sub := range submissions {
		for pos, label := range sub.ParsedRanking {
			model, ok := labels.Model(label)
			if !ok {
				continue
			}
			t, seen := tallies[model]
			if !seen {
				t = &tally{}
				tallies[model] = t
				order = append(order, model)
			}
			t.sum += pos + 1
			t.count++
		}
	}
	out := make([]AggregateRanking, 0, len(order))
	for _, model := range order {
		t := tallies[model]
		out = append(out, AggregateRanking{
			Model:         model,
			AverageRank:   round2(float64(t.sum) / float64(t.count)),
			RankingsCount: t.count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageRank < out[j].AverageRank })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
