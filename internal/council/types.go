package council

// ModelResponse is one Stage 1 answer.
type ModelResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// RankingSubmission is one reviewer's Stage 2 output. ParsedRanking may be
// shorter than the label map, or empty, when the text was malformed.
type RankingSubmission struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Synthesis is the chairman's Stage 3 output.
type Synthesis struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

type Metadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// Degraded reports which stages ran without usable input or output.
type Degraded struct {
	NoResponses     bool `json:"no_responses"`
	NoRankings      bool `json:"no_rankings"`
	SynthesisFailed bool `json:"synthesis_failed"`
}

func (d Degraded) Any() bool { return d.NoResponses || d.NoRankings || d.SynthesisFailed }

// Result is always returned by Run, even when every model failed.
type Result struct {
	Stage1   []ModelResponse     `json:"stage1"`
	Stage2   []RankingSubmission `json:"stage2"`
	Stage3   Synthesis           `json:"stage3"`
	Metadata Metadata            `json:"metadata"`
	Degraded Degraded            `json:"degraded"`
	Mode     Mode                `json:"mode"`
}

// Mode selects the chairman prompt.
type Mode string

const (
	ModeAnswer  Mode = "answer"
	ModeTrading Mode = "trading"
)
