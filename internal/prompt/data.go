package prompt

// LabeledResponse is a Stage 1 answer shown under its anonymous label.
type LabeledResponse struct {
	Label string
	Text  string
}

type RankingData struct {
	Query     string
	Responses []LabeledResponse
}

type ModelText struct {
	Model string
	Text  string
}

type AggregateLine struct {
	Model       string
	AverageRank float64
	Count       int
}

// SynthesisData feeds both chairman prompts; identities are visible here.
type SynthesisData struct {
	Query     string
	Responses []ModelText
	Rankings  []ModelText
	Aggregate []AggregateLine
}
