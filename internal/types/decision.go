package types

import (
	"fmt"
	"strings"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

// ParseDirection accepts the canonical names plus common synonyms.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy", "bullish":
		return DirectionLong, nil
	case "short", "sell", "bearish":
		return DirectionShort, nil
	case "flat", "hold", "neutral", "none":
		return DirectionFlat, nil
	}
	return "", fmt.Errorf("unknown direction %q", raw)
}

// Side maps a direction to the brokerage order side; FLAT has none.
func (d Direction) Side() string {
	switch d {
	case DirectionLong:
		return "buy"
	case DirectionShort:
		return "sell"
	default:
		return ""
	}
}

// TradeDecision is the council's trade, read-only once produced.
type TradeDecision struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Conviction float64   `json:"conviction"`
	Horizon    string    `json:"horizon"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Flat returns a no-trade decision for instrument.
func Flat(instrument, reason string) TradeDecision {
	return TradeDecision{Instrument: instrument, Direction: DirectionFlat, Rationale: reason}
}

func (d TradeDecision) String() string {
	return fmt.Sprintf("%s %s conviction=%.2f horizon=%s", d.Direction, d.Instrument, d.Conviction, d.Horizon)
}
