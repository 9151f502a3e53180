package council

import (
	"errors"
	"fmt"
)

// ErrTooManyResponses is returned when there are more responses than
// single-letter labels.
var ErrTooManyResponses = errors.New("council: more than 26 responses to label")

// LabelMap maps "Response A", "Response B"... to model ids in Stage 1 order.
type LabelMap struct {
	labels []string
	models map[string]string
}

func Label(i int) string {
	return fmt.Sprintf("Response %c", 'A'+rune(i))
}

func NewLabelMap(responses []ModelResponse) (LabelMap, error) {
	if len(responses) > 26 {
		return LabelMap{}, ErrTooManyResponses
	}
	lm := LabelMap{
		labels: make([]string, len(responses)),
		models: make(map[string]string, len(responses)),
	}
	for i, r := range responses {
		l := Label(i)
		lm.labels[i] = l
		lm.models[l] = r.Model
	}
	return lm, nil
}

// Labels returns the labels in assignment order.
func (m LabelMap) Labels() []string { return append([]string(nil), m.labels...) }

func (m LabelMap) Len() int { return len(m.labels) }

func (m LabelMap) Model(label string) (string, bool) {
	id, ok := m.models[label]
	return id, ok
}

// Map returns a copy suitable for serialization.
func (m LabelMap) Map() map[string]string {
	out := make(map[string]string, len(m.models))
	for k, v := range m.models {
		out[k] = v
	}
	return out
}
