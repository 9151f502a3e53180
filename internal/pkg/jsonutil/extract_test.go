package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "bare", in: `{"a":1}`, want: `{"a":1}`, ok: true},
		{name: "prose", in: "Decision below.\n{\"a\":\"}\"} trailing", want: `{"a":"}"}`, ok: true},
		{name: "fence", in: "x {not json}\n```json\n{\"b\":2}\n```", want: `{"b":2}`, ok: true},
		{name: "skips invalid", in: `{oops} then {"c":3}`, want: `{"c":3}`, ok: true},
		{name: "none", in: "no json here", ok: false},
		{name: "empty", in: "   ", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
