package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

const codeFence = "```"

// ExtractObject returns the first syntactically valid JSON object found in
// free text. Fenced code blocks are tried before the surrounding prose.
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, block := range fencedBlocks(raw) {
		if obj, ok := firstObject(block); ok {
			return obj, true
		}
	}
	return firstObject(raw)
}

func fencedBlocks(raw string) []string {
	var out []string
	rest := raw
	for {
		start := strings.Index(rest, codeFence)
		if start == -1 {
			return out
		}
		rest = rest[start+len(codeFence):]
		end := strings.Index(rest, codeFence)
		if end == -1 {
			return out
		}
		block := rest[:end]
		rest = rest[end+len(codeFence):]
		// drop a language tag such as "json" on the opening line
		if idx := strings.Index(block, "\n"); idx != -1 {
			first := strings.TrimSpace(block[:idx])
			if first != "" && !strings.ContainsAny(first, "{[") {
				block = block[idx+1:]
			}
		}
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
}

func firstObject(raw string) (string, bool) {
	offset := 0
	for offset < len(raw) {
		idx := strings.IndexByte(raw[offset:], '{')
		if idx == -1 {
			return "", false
		}
		start := offset + idx
		end, ok := balancedEnd(raw, start, '{', '}')
		if !ok {
			return "", false
		}
		candidate := raw[start : end+1]
		if gjson.Valid(candidate) {
			return candidate, true
		}
		offset = start + 1
	}
	return "", false
}

// balancedEnd finds the index of the bracket closing the one at start,
// skipping brackets that appear inside JSON strings.
func balancedEnd(raw string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}
