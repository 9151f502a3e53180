package council

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"council/internal/pkg/jsonutil"
	"council/internal/pkg/symbol"
	"council/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ErrNoDecision is returned when the chairman reply holds no JSON object.
var ErrNoDecision = errors.New("council: no decision object in chairman reply")

const decisionSchema = `{
  "type": "object",
  "required": ["instrument", "direction"],
  "properties": {
    "instrument": {"type": "string", "minLength": 1},
    "direction": {"type": "string", "minLength": 1},
    "conviction": {"type": ["number", "string"]},
    "horizon": {"type": "string"},
    "rationale": {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func decisionValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("decision.json")
	})
	return schema, schemaErr
}

// ParseTradeDecision reads the chairman's JSON trade out of free text.
// Conviction is clamped to [0,1].
func ParseTradeDecision(text string) (types.TradeDecision, error) {
	obj, ok := jsonutil.ExtractObject(text)
	if !ok {
		return types.TradeDecision{}, ErrNoDecision
	}
	validator, err := decisionValidator()
	if err != nil {
		return types.TradeDecision{}, fmt.Errorf("compile decision schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return types.TradeDecision{}, fmt.Errorf("decode decision: %w", err)
	}
	if err := validator.Validate(doc); err != nil {
		return types.TradeDecision{}, fmt.Errorf("invalid decision: %w", err)
	}

	parsed := gjson.Parse(obj)
	dir, err := types.ParseDirection(parsed.Get("direction").String())
	if err != nil {
		return types.TradeDecision{}, err
	}
	rawInstrument := parsed.Get("instrument").String()
	instrument := symbol.Normalize(rawInstrument)
	if instrument == "" {
		return types.TradeDecision{}, fmt.Errorf("invalid decision: unreadable instrument %q", rawInstrument)
	}
	decision := types.TradeDecision{
		Instrument: instrument,
		Direction:  dir,
		Conviction: clamp01(parsed.Get("conviction").Float()),
		Horizon:    strings.TrimSpace(parsed.Get("horizon").String()),
		Rationale:  strings.TrimSpace(parsed.Get("rationale").String()),
	}
	return decision, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
