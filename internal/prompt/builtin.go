package prompt

const (
	// Ranking is the Stage 2 anonymized peer review prompt.
	Ranking = "ranking"
	// Synthesis is the Stage 3 free-text chairman prompt.
	Synthesis = "synthesis"
	// Trading is the Stage 3 chairman prompt that must answer in JSON.
	Trading = "trading"
)

const rankingBody = `You are evaluating different responses to the following question:

Question: {{.Query}}

Here are the responses from different models (anonymized):
{{range .Responses}}
{{.Label}}:
{{.Text}}
{{end}}
Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`

const synthesisBody = `You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: {{.Query}}

STAGE 1 - Individual Responses:
{{range .Responses}}
Model: {{.Model}}
Response: {{.Text}}
{{end}}
STAGE 2 - Peer Rankings:
{{range .Rankings}}
Model: {{.Model}}
Ranking: {{.Text}}
{{end}}{{if .Aggregate}}
Aggregate standing (lower is better):
{{range .Aggregate}}- {{.Model}}: {{printf "%.2f" .AverageRank}} over {{.Count}} rankings
{{end}}{{end}}
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`

const tradingBody = `You are the Chairman of an LLM trading council. Several models proposed a trade for the question below and then ranked each other's proposals anonymously.

Question: {{.Query}}

STAGE 1 - Proposals:
{{range .Responses}}
Model: {{.Model}}
Proposal: {{.Text}}
{{end}}
STAGE 2 - Peer Rankings:
{{range .Rankings}}
Model: {{.Model}}
Ranking: {{.Text}}
{{end}}{{if .Aggregate}}
Aggregate standing (lower is better):
{{range .Aggregate}}- {{.Model}}: {{printf "%.2f" .AverageRank}} over {{.Count}} rankings
{{end}}{{end}}
Decide the single trade the council should make. Reply with ONE JSON object and nothing else:
{"instrument": "<ticker>", "direction": "LONG|SHORT|FLAT", "conviction": <number between 0 and 1>, "horizon": "<holding period, e.g. 1w>", "rationale": "<one paragraph>"}
Use FLAT when the council does not agree on a trade.`

func builtinTemplates() map[string]Template {
	return map[string]Template{
		Ranking: {
			ID:          Ranking,
			Description: "anonymized peer ranking",
			Body:        rankingBody,
		},
		Synthesis: {
			ID:          Synthesis,
			Description: "chairman synthesis",
			Body:        synthesisBody,
		},
		Trading: {
			ID:          Trading,
			Description: "chairman trade decision",
			System:      "You respond with strict JSON only.",
			Body:        tradingBody,
		},
	}
}
