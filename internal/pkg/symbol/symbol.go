// Package symbol normalizes the instrument names models write into the
// form the brokerage expects.
package symbol

import (
	"regexp"
	"strings"
)

// Symbol is an equity ticker (Quote empty) or a currency pair.
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) String() string {
	if s.Base == "" {
		return ""
	}
	if s.Quote == "" {
		return s.Base
	}
	return s.Base + "/" + s.Quote
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// Parse accepts "SPY", "$spy", "NYSEARCA:SPY", "BRK.B", "BTC/USD" and
// "btc-usd". Anything else yields the zero Symbol.
func Parse(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "$")
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Symbol{}
	}
	for _, sep := range []string{"/", "-"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			base, quote := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			if !tickerPattern.MatchString(base) || !tickerPattern.MatchString(quote) {
				return Symbol{}
			}
			return Symbol{Base: base, Quote: quote}
		}
	}
	if !tickerPattern.MatchString(s) {
		return Symbol{}
	}
	return Symbol{Base: s}
}

func Normalize(raw string) string {
	return Parse(raw).String()
}

func IsValid(raw string) bool {
	return Parse(raw).Base != ""
}

// NormalizeList normalizes and de-duplicates, dropping unreadable entries.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
